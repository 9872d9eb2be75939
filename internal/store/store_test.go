package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// tickingClock returns a clock that advances one second per call.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	cur := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
}

func TestNew_DefaultDirectories(t *testing.T) {
	st := New(WithLogger(zaptest.NewLogger(t)))

	listing, ok := st.ListDirectory("/")
	require.True(t, ok)
	assert.Equal(t, []string{"research", "notes", "results", "context", "subagents", "temp"}, listing.Directories)
	assert.Empty(t, listing.Files)
	assert.Equal(t, "/", st.Cwd())

	empty := New(WithoutDefaultDirs())
	listing, ok = empty.ListDirectory("/")
	require.True(t, ok)
	assert.Empty(t, listing.Directories)
}

func TestMkdir(t *testing.T) {
	st := New()

	assert.True(t, st.Mkdir("/research/auth"))
	assert.False(t, st.Mkdir("/research/auth"), "already exists")
	assert.False(t, st.Mkdir("/missing/child"), "parent missing")
	assert.False(t, st.Mkdir("/"), "root")

	require.NoError(t, st.WriteFile("/notes/todo", "x", nil))
	assert.False(t, st.Mkdir("/notes/todo"), "name taken by a file")

	require.True(t, st.ChangeDir("/research"))
	assert.True(t, st.Mkdir("relative"))
	_, ok := st.ListDirectory("/research/relative")
	assert.True(t, ok)
}

func TestWriteFile(t *testing.T) {
	st := New(WithClock(tickingClock()))

	require.NoError(t, st.WriteFile("/notes/a.md", "first", map[string]any{"source": "planner"}))
	info, ok := st.FileInfo("/notes/a.md")
	require.True(t, ok)
	assert.Equal(t, info.CreatedAt, info.UpdatedAt)
	assert.Equal(t, 5, info.Size)

	require.NoError(t, st.WriteFile("/notes/a.md", "second", map[string]any{"agent": "a1"}))
	updated, ok := st.FileInfo("/notes/a.md")
	require.True(t, ok)
	assert.Equal(t, info.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(info.UpdatedAt))
	assert.Equal(t, map[string]any{"source": "planner", "agent": "a1"}, updated.Metadata)

	content, ok := st.ReadFile("/notes/a.md")
	require.True(t, ok)
	assert.Equal(t, "second", content)
}

func TestWriteFile_Errors(t *testing.T) {
	st := New()

	assert.ErrorIs(t, st.WriteFile("/missing/a.md", "x", nil), ErrParentNotFound)
	assert.ErrorIs(t, st.WriteFile("/", "x", nil), ErrIsRoot)
	assert.ErrorIs(t, st.WriteFile("/research", "x", nil), ErrIsDirectory)
}

func TestFileInfo_MetadataIsCopied(t *testing.T) {
	st := New()
	meta := map[string]any{"k": "v"}
	require.NoError(t, st.WriteFile("/temp/x", "", meta))
	meta["k"] = "mutated"

	info, ok := st.FileInfo("/temp/x")
	require.True(t, ok)
	assert.Equal(t, "v", info.Metadata["k"])

	info.Metadata["k"] = "mutated again"
	again, _ := st.FileInfo("/temp/x")
	assert.Equal(t, "v", again.Metadata["k"])
}

func TestReadFile_Missing(t *testing.T) {
	st := New()
	_, ok := st.ReadFile("/research/nope.md")
	assert.False(t, ok)
	_, ok = st.ReadFile("/research")
	assert.False(t, ok, "directories are not files")
}

func TestAppendFile(t *testing.T) {
	st := New()

	require.NoError(t, st.AppendFile("/notes/log.txt", "one"))
	require.NoError(t, st.AppendFile("/notes/log.txt", "two"))

	content, ok := st.ReadFile("/notes/log.txt")
	require.True(t, ok)
	assert.Equal(t, "one\ntwo", content)
}

func TestAppendFile_Concurrent(t *testing.T) {
	st := New()
	const writers = 50

	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = st.AppendFile("/notes/shared.log", fmt.Sprintf("line %d", i))
		}()
	}
	wg.Wait()

	content, ok := st.ReadFile("/notes/shared.log")
	require.True(t, ok)
	lines := 1
	for _, r := range content {
		if r == '\n' {
			lines++
		}
	}
	assert.Equal(t, writers, lines, "no append may be lost")
}

func TestDeleteFile(t *testing.T) {
	st := New()
	require.NoError(t, st.WriteFile("/temp/a", "x", nil))
	require.NoError(t, st.WriteFile("/temp/b", "y", nil))

	assert.True(t, st.DeleteFile("/temp/a"))
	assert.False(t, st.DeleteFile("/temp/a"))
	assert.False(t, st.DeleteFile("/temp"), "directories cannot be deleted")
	assert.False(t, st.DeleteFile("/"))

	listing, ok := st.ListDirectory("/temp")
	require.True(t, ok)
	assert.Equal(t, []string{"b"}, listing.Files)
}

func TestChangeDir(t *testing.T) {
	st := New()

	assert.False(t, st.ChangeDir("/missing"))
	assert.Equal(t, "/", st.Cwd())

	assert.True(t, st.ChangeDir("research"))
	assert.Equal(t, "/research", st.Cwd())
	assert.Equal(t, "/research/x.md", st.Resolve("x.md"))

	assert.True(t, st.ChangeDir(".."))
	assert.Equal(t, "/", st.Cwd())

	require.NoError(t, st.WriteFile("/notes/f", "x", nil))
	assert.False(t, st.ChangeDir("/notes/f"), "files are not directories")
}

func TestSearch(t *testing.T) {
	st := New()
	require.True(t, st.Mkdir("/research/deep"))
	require.NoError(t, st.WriteFile("/research/deep/Findings_2.md", "", nil))
	require.NoError(t, st.WriteFile("/research/findings_1.md", "", nil))
	require.NoError(t, st.WriteFile("/research/other.md", "", nil))
	require.NoError(t, st.WriteFile("/results/FINDINGS.md", "", nil))

	got := st.Search("findings", "/")
	assert.Equal(t, []string{
		"/research/findings_1.md",
		"/research/deep/Findings_2.md",
		"/results/FINDINGS.md",
	}, got)

	assert.Equal(t, []string{"/research/deep/Findings_2.md"}, st.Search("FINDINGS", "/research/deep"))
	assert.Nil(t, st.Search("findings", "/missing"))
	assert.Empty(t, st.Search("deep", "/"), "directory names are not matched")
}

func TestSummary_ScriptedSequence(t *testing.T) {
	st := New()
	base := st.Summary()
	assert.Equal(t, 0, base.FileCount)
	assert.Equal(t, len(DefaultDirectories), base.DirectoryCount)

	writes := map[string]string{
		"/research/a.md":  "alpha",
		"/research/b.md":  "bravo!",
		"/notes/c.md":     "c",
		"/results/d.md":   "delta delta",
		"/context/e.json": "{}",
	}
	for path, content := range writes {
		require.NoError(t, st.WriteFile(path, content, nil))
	}
	require.True(t, st.DeleteFile("/research/b.md"))
	require.True(t, st.DeleteFile("/notes/c.md"))
	require.True(t, st.Mkdir("/research/sub"))
	require.True(t, st.ChangeDir("/research"))

	wantBytes := len("alpha") + len("delta delta") + len("{}")
	got := st.Summary()
	assert.Equal(t, Summary{
		FileCount:      3,
		DirectoryCount: len(DefaultDirectories) + 1,
		TotalBytes:     wantBytes,
		Cwd:            "/research",
	}, got)
}
