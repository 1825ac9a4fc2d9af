package filesystem

import (
	"fmt"
	"strings"

	"github.com/brettbedarf/tecnicofs"
)

// components splits a path into its non-empty names. "" and "/" have none.
func components(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}

// depth is the number of components of path
func depth(path string) int {
	return len(components(path))
}

// splitParentChild splits path into the parent path and the last component.
// A trailing slash is normalized away first, so "a/x/" and "a/x" are equal.
// The root itself has no parent and is rejected.
func splitParentChild(path string) (parent, child string, err error) {
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		return "", "", fmt.Errorf("%w: %q has no parent", tecnicofs.ErrInvalidPath, path)
	}
	idx := strings.LastIndexByte(trimmed, '/')
	if idx < 0 {
		return "", trimmed, nil
	}
	return trimmed[:idx], trimmed[idx+1:], nil
}

// pathLess orders paths by component count first and the string itself second.
// Two-path operations lock the smaller path first.
func pathLess(a, b string) bool {
	da, db := depth(a), depth(b)
	if da != db {
		return da < db
	}
	return a < b
}

// joinPath appends name to dir, keeping the root implicit
func joinPath(dir, name string) string {
	if depth(dir) == 0 {
		return name
	}
	return strings.TrimRight(dir, "/") + "/" + name
}
