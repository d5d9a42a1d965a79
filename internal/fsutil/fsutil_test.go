package fsutil

import "testing"

func TestNormalizeNameTruncates(t *testing.T) {
	long := "this-name-is-way-too-long-for-a-directory-entry"
	got := NormalizeName(long)
	if len(got) > 16 {
		t.Fatalf("got length %d, want <= 16", len(got))
	}
}

func TestNormalizeNameCanonicalizesComposedForm(t *testing.T) {
	composed := "caf\u00e9"   // single precomposed e-acute rune
	decomposed := "cafe\u0301" // plain e followed by a combining acute accent
	if NormalizeName(composed) != NormalizeName(decomposed) {
		t.Fatalf("composed and decomposed forms normalized differently: %q vs %q",
			NormalizeName(composed), NormalizeName(decomposed))
	}
}

func TestCleanPathCollapsesDotDot(t *testing.T) {
	cases := map[string]string{
		"/a/b/../c":  "/a/c",
		"/a/./b":     "/a/b",
		"/../a":      "/a",
		"/":          "/",
		"/a//b":      "/a/b",
		"relative/a": "relative/a",
	}
	for in, want := range cases {
		if got := CleanPath(in); got != want {
			t.Errorf("CleanPath(%q) = %q, want %q", in, got, want)
		}
	}
}
