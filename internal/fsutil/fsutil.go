// Package fsutil supplements internal/fs with filename and path
// canonicalization that spec.md's distilled directory-entry format is
// silent on: NFC-normalizing a name before it's truncated to the
// fixed 16-byte slot (spec.md §6), so two byte-distinct but
// canonically-equal names (e.g. a precomposed vs. combining-mark
// accented letter) don't silently collide or diverge after
// truncation, and collapsing a washed path's "."/".." components the
// way a shell's make_clear_abs_path does before handing it to
// internal/fs.
//
// Grounded on original_source/Gos/shell/in_cmd.c's wash_path (the
// "."/".." collapsing behavior) — internal/fs.Resolve already walks
// "." and ".." as ordinary directory entries, so CleanPath here only
// needs to produce a shorter equivalent path for display and cwd
// bookkeeping, not to reimplement traversal.
package fsutil

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"gos/internal/defs"
)

// NormalizeName NFC-normalizes name and truncates it to
// defs.MaxFileNameLen bytes, the on-disk directory entry's fixed
// filename field width.
func NormalizeName(name string) string {
	n := norm.NFC.String(name)
	if len(n) > defs.MaxFileNameLen {
		n = n[:defs.MaxFileNameLen]
	}
	return n
}

// CleanPath collapses "." and ".." components and repeated slashes in
// an absolute path, the way a shell washes a path before displaying
// it or storing it as the new cwd. Unlike internal/fs.Resolve (which
// walks "." and ".." as literal directory entries during lookup),
// CleanPath never touches the filesystem — it only rewrites the
// string.
func CleanPath(path string) string {
	if path == "" || path[0] != '/' {
		return path
	}
	parts := strings.Split(path, "/")
	var out []string
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return "/"
	}
	return "/" + strings.Join(out, "/")
}
