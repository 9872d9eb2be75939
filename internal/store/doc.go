// Package store implements the shared working memory of a deep agent run: an
// in-memory, path-addressed tree of directories and files.
//
// Paths are slash separated. Absolute paths start at "/", relative paths are
// resolved against a mutable cursor (see ChangeDir). ".." pops one segment and
// never escapes the root:
//
//	st := store.New()
//	_ = st.WriteFile("/research/findings_auth.md", "token rotation is manual", nil)
//	st.ChangeDir("/research")
//	content, ok := st.ReadFile("findings_auth.md")
//
// A Store is safe for concurrent use. Every mutation takes a single write lock,
// so AppendFile is atomic with respect to other Store calls.
//
// The whole tree can be exported to JSON and imported back. Import validates
// the document before it replaces the live tree, so a malformed document leaves
// the Store unchanged.
package store
