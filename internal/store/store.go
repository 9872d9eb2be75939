package store

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDirectories are created by New unless WithoutDefaultDirs is given.
var DefaultDirectories = []string{
	"/research",
	"/notes",
	"/results",
	"/context",
	"/subagents",
	"/temp",
}

// File is a leaf record of the tree.
type File struct {
	Path      string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
	Metadata  map[string]any
}

// FileInfo describes a file without its content.
type FileInfo struct {
	Path      string         `json:"path"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Size      int            `json:"size"`
	Metadata  map[string]any `json:"metadata"`
}

// Listing is the content of one directory, in insertion order.
type Listing struct {
	Files       []string `json:"files"`
	Directories []string `json:"directories"`
}

// Summary is computed by a full walk of the tree.
type Summary struct {
	FileCount      int    `json:"total_files"`
	DirectoryCount int    `json:"total_directories"`
	TotalBytes     int    `json:"total_size_bytes"`
	Cwd            string `json:"current_directory"`
}

// directory keeps children in insertion order so traversal is deterministic.
type directory struct {
	path      string
	createdAt time.Time
	files     map[string]*File
	fileOrder []string
	dirs      map[string]*directory
	dirOrder  []string
}

func newDirectory(path string, createdAt time.Time) *directory {
	return &directory{
		path:      path,
		createdAt: createdAt,
		files:     make(map[string]*File),
		dirs:      make(map[string]*directory),
	}
}

func (d *directory) addFile(name string, f *File) {
	if _, exists := d.files[name]; !exists {
		d.fileOrder = append(d.fileOrder, name)
	}
	d.files[name] = f
}

func (d *directory) removeFile(name string) {
	delete(d.files, name)
	for i, n := range d.fileOrder {
		if n == name {
			d.fileOrder = append(d.fileOrder[:i], d.fileOrder[i+1:]...)
			return
		}
	}
}

func (d *directory) addDir(name string, child *directory) {
	if _, exists := d.dirs[name]; !exists {
		d.dirOrder = append(d.dirOrder, name)
	}
	d.dirs[name] = child
}

// Store is the hierarchical in-memory store.
type Store struct {
	mu     sync.RWMutex
	root   *directory
	cwd    string
	now    func() time.Time
	logger *zap.Logger

	skipDefaults bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.Named("store")
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithoutDefaultDirs creates an empty root.
func WithoutDefaultDirs() Option {
	return func(s *Store) {
		s.skipDefaults = true
	}
}

// New creates a Store with the default directory layout.
func New(opts ...Option) *Store {
	s := &Store{
		cwd:    Separator,
		now:    func() time.Time { return time.Now().UTC() },
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.root = newDirectory(Separator, s.timestamp())
	if !s.skipDefaults {
		for _, dir := range DefaultDirectories {
			s.Mkdir(dir)
		}
	}
	return s
}

// timestamp returns the current time without a monotonic reading so values
// survive an export round trip unchanged.
func (s *Store) timestamp() time.Time {
	return s.now().Round(0)
}

// Resolve returns the absolute, normalized form of path.
func (s *Store) Resolve(path string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return resolve(s.cwd, path)
}

// Cwd returns the current cursor.
func (s *Store) Cwd() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cwd
}

// lookupDir walks from root to abs. Caller holds the lock.
func (s *Store) lookupDir(abs string) *directory {
	cur := s.root
	for _, seg := range segments(abs) {
		next, ok := cur.dirs[seg]
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// Mkdir creates a single directory under an existing parent. It reports false
// if the parent is missing or the name is already taken.
func (s *Store) Mkdir(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	abs := resolve(s.cwd, path)
	if abs == Separator {
		return false
	}
	parentPath, name := splitParent(abs)
	parent := s.lookupDir(parentPath)
	if parent == nil {
		s.logger.Debug("mkdir: parent missing", zap.String("path", abs))
		return false
	}
	if _, exists := parent.dirs[name]; exists {
		return false
	}
	if _, exists := parent.files[name]; exists {
		return false
	}

	parent.addDir(name, newDirectory(abs, s.timestamp()))
	s.logger.Debug("created directory", zap.String("path", abs))
	return true
}

// WriteFile creates or overwrites a file. On overwrite the metadata is merged
// into the existing metadata and the update timestamp refreshed.
func (s *Store) WriteFile(path, content string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(resolve(s.cwd, path), content, metadata)
}

func (s *Store) writeLocked(abs, content string, metadata map[string]any) error {
	if abs == Separator {
		return ErrIsRoot
	}
	parentPath, name := splitParent(abs)
	parent := s.lookupDir(parentPath)
	if parent == nil {
		return ErrParentNotFound
	}
	if _, isDir := parent.dirs[name]; isDir {
		return ErrIsDirectory
	}

	now := s.timestamp()
	if existing, ok := parent.files[name]; ok {
		existing.Content = content
		existing.UpdatedAt = now
		for k, v := range metadata {
			existing.Metadata[k] = v
		}
		s.logger.Debug("updated file", zap.String("path", abs), zap.Int("bytes", len(content)))
		return nil
	}

	parent.addFile(name, &File{
		Path:      abs,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  copyMetadata(metadata),
	})
	s.logger.Debug("created file", zap.String("path", abs), zap.Int("bytes", len(content)))
	return nil
}

// lookupFile returns the file at abs. Caller holds the lock.
func (s *Store) lookupFile(abs string) *File {
	if abs == Separator {
		return nil
	}
	parentPath, name := splitParent(abs)
	parent := s.lookupDir(parentPath)
	if parent == nil {
		return nil
	}
	return parent.files[name]
}

// ReadFile returns the content of the file at path.
func (s *Store) ReadFile(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f := s.lookupFile(resolve(s.cwd, path))
	if f == nil {
		return "", false
	}
	return f.Content, true
}

// AppendFile appends content on a new line, creating the file if needed.
func (s *Store) AppendFile(path, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	abs := resolve(s.cwd, path)
	if f := s.lookupFile(abs); f != nil {
		content = f.Content + "\n" + content
	}
	return s.writeLocked(abs, content, nil)
}

// DeleteFile removes a file. Directories cannot be deleted.
func (s *Store) DeleteFile(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	abs := resolve(s.cwd, path)
	if abs == Separator {
		return false
	}
	parentPath, name := splitParent(abs)
	parent := s.lookupDir(parentPath)
	if parent == nil {
		return false
	}
	if _, ok := parent.files[name]; !ok {
		return false
	}
	parent.removeFile(name)
	s.logger.Debug("deleted file", zap.String("path", abs))
	return true
}

// ListDirectory lists the files and subdirectories of path.
func (s *Store) ListDirectory(path string) (Listing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := s.lookupDir(resolve(s.cwd, path))
	if dir == nil {
		return Listing{}, false
	}
	return Listing{
		Files:       append([]string{}, dir.fileOrder...),
		Directories: append([]string{}, dir.dirOrder...),
	}, true
}

// ChangeDir moves the cursor if the target directory exists.
func (s *Store) ChangeDir(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	abs := resolve(s.cwd, path)
	if s.lookupDir(abs) == nil {
		return false
	}
	s.cwd = abs
	return true
}

// FileInfo returns the timestamps, size and metadata of a file.
func (s *Store) FileInfo(path string) (FileInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f := s.lookupFile(resolve(s.cwd, path))
	if f == nil {
		return FileInfo{}, false
	}
	return FileInfo{
		Path:      f.Path,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		Size:      len(f.Content),
		Metadata:  copyMetadata(f.Metadata),
	}, true
}

// Search returns the absolute paths of files under from whose name contains
// fragment, case-insensitively. Traversal is pre-order: a directory's files
// come before its subdirectories.
func (s *Store) Search(fragment, from string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := s.lookupDir(resolve(s.cwd, from))
	if start == nil {
		return nil
	}

	needle := strings.ToLower(fragment)
	var matches []string
	var walk func(d *directory)
	walk = func(d *directory) {
		for _, name := range d.fileOrder {
			if strings.Contains(strings.ToLower(name), needle) {
				matches = append(matches, Join(d.path, name))
			}
		}
		for _, name := range d.dirOrder {
			walk(d.dirs[name])
		}
	}
	walk(start)
	return matches
}

// Summary counts files, directories (root excluded) and content bytes.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{Cwd: s.cwd}
	var walk func(d *directory)
	walk = func(d *directory) {
		sum.FileCount += len(d.files)
		sum.DirectoryCount += len(d.dirs)
		for _, f := range d.files {
			sum.TotalBytes += len(f.Content)
		}
		for _, name := range d.dirOrder {
			walk(d.dirs[name])
		}
	}
	walk(s.root)
	return sum
}

func copyMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
