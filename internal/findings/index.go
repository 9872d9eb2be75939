package findings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/tmc/langchaingo/embeddings"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/deepagent/internal/findings")

// CollectionName is the chromem collection holding findings.
const CollectionName = "findings"

var (
	// ErrEmptyFinding is returned when a finding has no content.
	ErrEmptyFinding = errors.New("finding content is empty")
	// ErrEmbedding wraps embedder failures.
	ErrEmbedding = errors.New("embedding failed")
)

// Finding is one indexed result.
type Finding struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Match is a search hit.
type Match struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Similarity float32           `json:"similarity"`
}

// Index is an in-memory semantic index. It is safe for concurrent use.
type Index struct {
	mu         sync.Mutex
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	logger     *zap.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Index) {
		if l != nil {
			i.logger = l.Named("findings")
		}
	}
}

// NewIndex creates an empty index. A nil embedder selects HashEmbedder.
func NewIndex(embedder embeddings.Embedder, opts ...Option) (*Index, error) {
	if embedder == nil {
		embedder = NewHashEmbedder()
	}
	idx := &Index{
		db:       chromem.NewDB(),
		embedder: embedder,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}

	collection, err := idx.db.GetOrCreateCollection(CollectionName, nil, idx.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", CollectionName, err)
	}
	idx.collection = collection
	return idx, nil
}

func (i *Index) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return i.embedder.EmbedQuery(ctx, text)
	}
}

// Add embeds and stores a finding. Adding an existing id replaces it.
func (i *Index) Add(ctx context.Context, f Finding) error {
	ctx, span := tracer.Start(ctx, "findings.Add")
	defer span.End()
	span.SetAttributes(attribute.String("finding.id", f.ID))

	if f.Content == "" {
		return ErrEmptyFinding
	}

	vecs, err := i.embedder.EmbedDocuments(ctx, []string{f.Content})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vecs) != 1 {
		return fmt.Errorf("%w: expected 1 vector, got %d", ErrEmbedding, len(vecs))
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	err = i.collection.AddDocument(ctx, chromem.Document{
		ID:        f.ID,
		Content:   f.Content,
		Metadata:  f.Metadata,
		Embedding: vecs[0],
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding finding %s: %w", f.ID, err)
	}

	span.SetStatus(codes.Ok, "success")
	i.logger.Debug("indexed finding", zap.String("id", f.ID), zap.Int("bytes", len(f.Content)))
	return nil
}

// Search returns up to n findings most similar to query, best first.
func (i *Index) Search(ctx context.Context, query string, n int) ([]Match, error) {
	ctx, span := tracer.Start(ctx, "findings.Search")
	defer span.End()

	if n <= 0 || query == "" {
		return nil, nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	// chromem requires n <= document count.
	count := i.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if n > count {
		n = count
	}

	results, err := i.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying findings: %w", err)
	}

	matches := make([]Match, len(results))
	for k, r := range results {
		matches[k] = Match{
			ID:         r.ID,
			Content:    r.Content,
			Metadata:   r.Metadata,
			Similarity: r.Similarity,
		}
	}
	span.SetAttributes(attribute.Int("results_count", len(matches)))
	span.SetStatus(codes.Ok, "success")
	return matches, nil
}

// Len returns the number of indexed findings.
func (i *Index) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.collection.Count()
}

// Reset drops every finding.
func (i *Index) Reset() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.db.DeleteCollection(CollectionName); err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	collection, err := i.db.GetOrCreateCollection(CollectionName, nil, i.embeddingFunc())
	if err != nil {
		return fmt.Errorf("recreating collection: %w", err)
	}
	i.collection = collection
	return nil
}
