package engine

import "strings"

// PathSeparator splits nested parameter paths such as "outputs.OUT1".
const PathSeparator = "."

// ResolvePath looks path up in a tree of nested maps. A path without a
// separator is a direct key lookup. A missing key, a non-map intermediate
// node or a JSON null leaf all report not found.
func ResolvePath(tree map[string]any, path string) (any, bool) {
	if tree == nil || path == "" {
		return nil, false
	}
	if !strings.Contains(path, PathSeparator) {
		v, ok := tree[path]
		return v, ok && v != nil
	}

	head, rest, _ := strings.Cut(path, PathSeparator)
	next, ok := tree[head].(map[string]any)
	if !ok {
		return nil, false
	}
	return ResolvePath(next, rest)
}

// leaf returns the last segment of a parameter path.
func leaf(path string) string {
	if i := strings.LastIndex(path, PathSeparator); i >= 0 {
		return path[i+1:]
	}
	return path
}
