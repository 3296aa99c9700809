// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCitationHeaderListsAllUnderSix(t *testing.T) {
	ids := []PathId{"a", "b", "c"}
	got := citationHeader(ids)
	want := "% a, b, c\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestCitationHeaderTruncatesAtSixOrMore(t *testing.T) {
	ids := []PathId{"a", "b", "c", "d", "e", "f"}
	got := citationHeader(ids)
	if !strings.HasPrefix(got, "% a, b, c, ... (2 more), f\n") {
		t.Fatalf("unexpected header: %q", got)
	}
}

func TestPrettifyBibtexReindentsByBraceDepth(t *testing.T) {
	in := "@article{key,\ntitle={Some Title},\n}\n"
	out := prettifyBibtex(in)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %v", len(lines), lines)
	}
	if lines[0] != "@article{key," {
		t.Fatalf("unexpected first line: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "    title") {
		t.Fatalf("expected indented second line, got %q", lines[1])
	}
	if lines[2] != "}" {
		t.Fatalf("expected closing brace dedented, got %q", lines[2])
	}
}

func TestPrettifyBibtexAppendsTrailingNewline(t *testing.T) {
	out := prettifyBibtex("@article{key}")
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("expected trailing newline to be appended")
	}
}

func TestWriteCitationsOrdersByFirstPathId(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "citations.bib")

	entries := map[Doi]*citationEntry{
		Doi("10.1/z"): {pathIds: []PathId{"zeta"}, content: "@article{z}\n"},
		Doi("10.1/a"): {pathIds: []PathId{"alpha", "beta"}, content: "@article{a}\n"},
	}
	if err := writeCitations(path, entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	alphaIdx := strings.Index(content, "alpha")
	zetaIdx := strings.Index(content, "zeta")
	if alphaIdx == -1 || zetaIdx == -1 || alphaIdx > zetaIdx {
		t.Fatalf("expected alpha entry before zeta entry, got:\n%s", content)
	}
}
