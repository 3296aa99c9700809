// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// citationEntry accumulates every path id a DOI was referenced from,
// plus the fetched (and possibly prettified) bibtex content for it.
type citationEntry struct {
	pathIds []PathId
	content string
}

// writeCitations renders a combined bibtex file from the accumulated
// doi -> entry map and writes it to path. Within each entry, path ids
// are sorted lexicographically; entries are then ordered by their
// first (smallest) path id.
func writeCitations(path string, entries map[Doi]*citationEntry) error {
	type row struct {
		doi     Doi
		pathIds []PathId
		content string
	}
	rows := make([]row, 0, len(entries))
	for doi, entry := range entries {
		pathIds := append([]PathId(nil), entry.pathIds...)
		sort.Slice(pathIds, func(i, j int) bool { return pathIds[i] < pathIds[j] })
		rows = append(rows, row{doi: doi, pathIds: pathIds, content: entry.content})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].pathIds[0] < rows[j].pathIds[0] })

	var combined strings.Builder
	for _, r := range rows {
		if combined.Len() > 0 {
			combined.WriteByte('\n')
		}
		combined.WriteString(citationHeader(r.pathIds))
		fmt.Fprintf(&combined, "%% DOI %s\n", r.doi)
		combined.WriteString(r.content)
	}
	return os.WriteFile(path, []byte(combined.String()), 0o644)
}

// citationHeader formats the "% p1, p2, ..." comment line preceding a
// bibtex entry. Fewer than 6 path ids list every name; six or more
// list the first three, an "(N more)" note, and the last.
func citationHeader(pathIds []PathId) string {
	if len(pathIds) < 6 {
		names := make([]string, len(pathIds))
		for i, id := range pathIds {
			names[i] = string(id)
		}
		return fmt.Sprintf("%% %s\n", strings.Join(names, ", "))
	}
	prefix := make([]string, 3)
	for i := 0; i < 3; i++ {
		prefix[i] = string(pathIds[i])
	}
	return fmt.Sprintf("%% %s, ... (%d more), %s\n", strings.Join(prefix, ", "), len(pathIds)-4, pathIds[len(pathIds)-1])
}

// prettifyBibtex reindents a bibtex record: each line is indented by
// four spaces per brace-nesting depth (one less for a line that opens
// with a closing brace), collapsing leading whitespace on every line.
func prettifyBibtex(bibtex string) string {
	var out strings.Builder
	out.Grow(len(bibtex))
	newLine := true
	depth := 0
	for _, ch := range bibtex {
		if newLine && !isASCIISpace(ch) {
			newLine = false
			indent := depth
			if ch == '}' {
				indent--
			}
			for i := 0; i < 4*indent; i++ {
				out.WriteByte(' ')
			}
		}
		switch {
		case ch == '{':
			depth++
			out.WriteRune(ch)
		case ch == '}':
			depth--
			out.WriteRune(ch)
		case ch == '\n':
			newLine = true
			out.WriteRune(ch)
		case isASCIISpace(ch):
			if !newLine {
				out.WriteRune(ch)
			}
		default:
			out.WriteRune(ch)
		}
	}
	s := out.String()
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}

func isASCIISpace(ch rune) bool {
	switch ch {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}
