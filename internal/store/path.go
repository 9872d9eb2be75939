package store

import "strings"

// Separator is the path segment separator.
const Separator = "/"

// resolve converts path to its absolute, normalized form relative to cwd.
func resolve(cwd, path string) string {
	if !strings.HasPrefix(path, Separator) {
		if cwd == Separator {
			path = Separator + path
		} else {
			path = cwd + Separator + path
		}
	}

	parts := make([]string, 0, 8)
	for _, part := range strings.Split(path, Separator) {
		switch part {
		case "", ".":
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, part)
		}
	}

	return Separator + strings.Join(parts, Separator)
}

// segments splits an absolute, resolved path. Root has no segments.
func segments(abs string) []string {
	trimmed := strings.Trim(abs, Separator)
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, Separator)
}

// Join joins a directory path and a child name.
func Join(dir, name string) string {
	if dir == Separator {
		return Separator + name
	}
	return dir + Separator + name
}

// splitParent returns the parent path and the final segment of abs.
func splitParent(abs string) (string, string) {
	segs := segments(abs)
	if len(segs) == 0 {
		return Separator, ""
	}
	name := segs[len(segs)-1]
	return Separator + strings.Join(segs[:len(segs)-1], Separator), name
}
