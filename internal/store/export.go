package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// exportNode is the serialized form of a directory.
type exportNode struct {
	Path           string       `json:"path"`
	CreatedAt      time.Time    `json:"created_at"`
	Files          orderedFiles `json:"files"`
	Subdirectories orderedDirs  `json:"subdirectories"`
}

type exportFile struct {
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata"`
}

// orderedFiles and orderedDirs are JSON objects whose key order is preserved
// in both directions.
type orderedFiles struct {
	names  []string
	byName map[string]exportFile
}

type orderedDirs struct {
	names  []string
	byName map[string]*exportNode
}

func (o orderedFiles) MarshalJSON() ([]byte, error) {
	return marshalOrdered(o.names, func(name string) any { return o.byName[name] })
}

func (o orderedDirs) MarshalJSON() ([]byte, error) {
	return marshalOrdered(o.names, func(name string) any { return o.byName[name] })
}

func (o *orderedFiles) UnmarshalJSON(data []byte) error {
	o.byName = make(map[string]exportFile)
	return unmarshalOrdered(data, func(name string, dec *json.Decoder) error {
		if _, dup := o.byName[name]; dup {
			return fmt.Errorf("duplicate file %q", name)
		}
		var f exportFile
		if err := dec.Decode(&f); err != nil {
			return fmt.Errorf("file %q: %w", name, err)
		}
		o.names = append(o.names, name)
		o.byName[name] = f
		return nil
	})
}

func (o *orderedDirs) UnmarshalJSON(data []byte) error {
	o.byName = make(map[string]*exportNode)
	return unmarshalOrdered(data, func(name string, dec *json.Decoder) error {
		if _, dup := o.byName[name]; dup {
			return fmt.Errorf("duplicate directory %q", name)
		}
		var n exportNode
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("directory %q: %w", name, err)
		}
		o.names = append(o.names, name)
		o.byName[name] = &n
		return nil
	})
}

func marshalOrdered(names []string, value func(string) any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(value(name))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func unmarshalOrdered(data []byte, each func(name string, dec *json.Decoder) error) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected key, got %v", tok)
		}
		if err := each(name, dec); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

// Export serializes the whole tree.
func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	node := toExport(s.root)
	s.mu.RUnlock()

	data, err := json.MarshalIndent(node, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("exporting store: %w", err)
	}
	return data, nil
}

func toExport(d *directory) *exportNode {
	node := &exportNode{
		Path:      d.path,
		CreatedAt: d.createdAt,
		Files: orderedFiles{
			names:  append([]string{}, d.fileOrder...),
			byName: make(map[string]exportFile, len(d.files)),
		},
		Subdirectories: orderedDirs{
			names:  append([]string{}, d.dirOrder...),
			byName: make(map[string]*exportNode, len(d.dirs)),
		},
	}
	for name, f := range d.files {
		node.Files.byName[name] = exportFile{
			Content:   f.Content,
			CreatedAt: f.CreatedAt,
			UpdatedAt: f.UpdatedAt,
			Metadata:  copyMetadata(f.Metadata),
		}
	}
	for name, child := range d.dirs {
		node.Subdirectories.byName[name] = toExport(child)
	}
	return node
}

// Import replaces the tree with a previously exported document. The document
// is fully decoded and validated first; on error the live tree is unchanged.
//
// A directory without created_at is stamped with the import time. Files
// must carry both timestamps. Numeric metadata decodes to int when it is
// integral and fits, and to float64 otherwise.
func (s *Store) Import(data []byte) error {
	var node exportNode
	if err := json.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}
	root, err := fromExport(&node, Separator, s.timestamp())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = root
	if s.lookupDir(s.cwd) == nil {
		s.cwd = Separator
	}
	s.logger.Info("imported store", zap.Int("bytes", len(data)))
	return nil
}

func fromExport(node *exportNode, want string, now time.Time) (*directory, error) {
	if node.Path != want {
		return nil, fmt.Errorf("node path %q does not match position %q", node.Path, want)
	}
	created := node.CreatedAt
	if created.IsZero() {
		created = now
	}

	d := newDirectory(want, created)
	for _, name := range node.Files.names {
		if err := validName(name); err != nil {
			return nil, err
		}
		f := node.Files.byName[name]
		if f.CreatedAt.IsZero() || f.UpdatedAt.IsZero() {
			return nil, fmt.Errorf("file %q: missing timestamps", Join(want, name))
		}
		d.addFile(name, &File{
			Path:      Join(want, name),
			Content:   f.Content,
			CreatedAt: f.CreatedAt,
			UpdatedAt: f.UpdatedAt,
			Metadata:  normalizeMetadata(f.Metadata),
		})
	}
	for _, name := range node.Subdirectories.names {
		if err := validName(name); err != nil {
			return nil, err
		}
		if _, clash := d.files[name]; clash {
			return nil, fmt.Errorf("%q is both a file and a directory", Join(want, name))
		}
		child := node.Subdirectories.byName[name]
		if child == nil {
			return nil, fmt.Errorf("directory %q: null node", Join(want, name))
		}
		sub, err := fromExport(child, Join(want, name), now)
		if err != nil {
			return nil, err
		}
		d.addDir(name, sub)
	}
	return d, nil
}

// normalizeMetadata replaces the json.Number values left by the decoder,
// including those nested in objects and arrays.
func normalizeMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(v.String(), 10, strconv.IntSize); err == nil {
			return int(i)
		}
		f, err := v.Float64()
		if err != nil {
			return v.String()
		}
		return f
	case map[string]any:
		return normalizeMetadata(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.Contains(name, Separator) {
		return fmt.Errorf("invalid entry name %q", name)
	}
	return nil
}
