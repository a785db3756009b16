package search

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// KindFact is the document kind produced by ParseFacts.
const KindFact = "fact"

// LoadFacts reads an operator-supplied Markdown file of extra wellness facts.
// See ParseFacts for the accepted layout.
func LoadFacts(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseFacts(f)
}

// ParseFacts turns Markdown into one fact document per non-blank line.
// Table rows are flattened into a single sentence, separator rows and
// headings are skipped, and list markers are stripped.
func ParseFacts(r io.Reader) ([]Document, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out []Document
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "text") {
			return
		}
		out = append(out, Document{
			ID:    fmt.Sprintf("extra-fact-%d", len(out)+1),
			Kind:  KindFact,
			Title: "Wellness fact",
			Text:  s,
		})
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "", strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|"):
			cells := tableCells(line)
			if len(cells) > 0 {
				add(strings.Join(cells, " "))
			}
		default:
			line = strings.TrimLeft(line, "-*+ ")
			add(line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// tableCells returns the non-empty cells of a table row, or nil for a
// separator row like |---|:--:|.
func tableCells(line string) []string {
	cols := strings.Split(strings.Trim(line, "|"), "|")
	cells := make([]string, 0, len(cols))
	sep := true
	for _, c := range cols {
		cell := strings.TrimSpace(c)
		if cell != "" {
			cells = append(cells, cell)
		}
		if strings.Trim(cell, ":- ") != "" {
			sep = false
		}
	}
	if sep {
		return nil
	}
	return cells
}
