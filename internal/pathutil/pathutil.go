// Package pathutil implements the small set of pure path-string helpers
// the mount registry and the filesystem backends share. It stands in for
// the reference library's utils/str.c and utils/path.c, which spec.md
// names as an out-of-scope external collaborator: only the handful of
// operations the core actually calls are implemented here.
package pathutil

import "strings"

// NormalizeMountPrefix applies the §4.2 normalization rule: a single
// trailing slash is stripped, unless the prefix is exactly "/" or ends in
// two slashes (so scheme-like prefixes such as "file:///" survive).
func NormalizeMountPrefix(prefix string) string {
	if prefix == "/" {
		return prefix
	}
	if strings.HasSuffix(prefix, "//") {
		return prefix
	}
	return strings.TrimSuffix(prefix, "/")
}

// Residual returns the portion of path that remains after stripping the
// mount prefix, always starting with "/".
func Residual(prefix, path string) string {
	residual := path[len(prefix):]
	if !strings.HasPrefix(residual, "/") {
		// Covers an exact match ("" -> "/") and prefixes that already
		// end in "/", such as "/" itself or "file:///".
		return "/" + residual
	}
	return residual
}

// Split divides a residual path into its non-empty "/"-separated
// components, e.g. "/a/b/c" -> ["a", "b", "c"] and "/" -> nil.
func Split(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// SplitParent divides a residual path into its parent directory path and
// its basename, e.g. "/a/b/c" -> ("/a/b", "c") and "/c" -> ("/", "c").
func SplitParent(path string) (parent, base string) {
	trimmed := strings.Trim(path, "/")
	idx := strings.LastIndexByte(trimmed, '/')
	if idx < 0 {
		return "/", trimmed
	}
	return "/" + trimmed[:idx], trimmed[idx+1:]
}

// Join re-joins path components produced by Split back into a residual
// path.
func Join(components []string) string {
	if len(components) == 0 {
		return "/"
	}
	return "/" + strings.Join(components, "/")
}
