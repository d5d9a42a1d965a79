package caller

import (
	"bytes"
	"strings"
	"testing"
)

func TestDumpIncludesImmediateCaller(t *testing.T) {
	var buf bytes.Buffer
	Dump(&buf, 0)
	out := buf.String()
	if !strings.Contains(out, "caller_test.go") {
		t.Fatalf("Dump output missing this test file's frame: %q", out)
	}
}

func TestDumpJoinsMultipleFramesWithArrow(t *testing.T) {
	var buf bytes.Buffer
	func() {
		Dump(&buf, 0)
	}()
	out := buf.String()
	if !strings.Contains(out, "<-") {
		t.Fatalf("Dump with multiple frames should arrow-join, got: %q", out)
	}
}

func TestDumpSkipSkipsFrames(t *testing.T) {
	var full, skipped bytes.Buffer
	Dump(&full, 0)
	Dump(&skipped, 1)
	if strings.Count(full.String(), "\n") <= strings.Count(skipped.String(), "\n") {
		t.Fatalf("skip=1 should drop at least one frame relative to skip=0: full=%q skipped=%q", full.String(), skipped.String())
	}
}
