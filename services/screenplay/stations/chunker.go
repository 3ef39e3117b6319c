// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stations

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 4000
	DefaultChunkOverlap = 200

	// gapMarker separates non-adjacent chunks in an excerpt.
	gapMarker = "\n[...]\n"
)

// sceneSeparators split on scene headings before paragraphs.
var sceneSeparators = []string{"\n\nINT.", "\n\nEXT.", "\n\n", "\n", " ", ""}

// Chunk splits a screenplay into overlapping pieces, preferring scene
// headings as boundaries.
//
// Outputs:
//
//	[]string - Non-empty chunks in text order. Nil for blank text.
//	error - Non-nil if the splitter fails.
func Chunk(text string, size, overlap int) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators(sceneSeparators),
		textsplitter.WithKeepSeparator(true),
	)
	parts, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split screenplay: %w", err)
	}

	chunks := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			chunks = append(chunks, p)
		}
	}
	return chunks, nil
}

// Excerpt joins chunks into at most budget characters.
//
// Description:
//
//	When everything fits the chunks are joined as is. Otherwise chunks
//	are picked from the opening, the ending and the middle in turn, so
//	the excerpt covers all three acts, and gaps are marked with [...].
func Excerpt(chunks []string, budget int) string {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total <= budget || len(chunks) == 0 {
		return strings.Join(chunks, "\n")
	}

	n := len(chunks)
	picked := make(map[int]bool, n)
	used := 0
	try := func(i int) bool {
		if i < 0 || i >= n || picked[i] {
			return true
		}
		if used+len(chunks[i])+len(gapMarker) > budget {
			return false
		}
		picked[i] = true
		used += len(chunks[i]) + len(gapMarker)
		return true
	}

	mid := n / 2
	for step := 0; step < n; step++ {
		ok := try(step)
		ok = try(n-1-step) && ok
		ok = try(mid+step) && ok
		if !ok {
			break
		}
	}
	if len(picked) == 0 {
		return chunks[0][:min(max(budget, 0), len(chunks[0]))]
	}

	idx := make([]int, 0, len(picked))
	for i := range picked {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	var b strings.Builder
	for k, i := range idx {
		if k > 0 {
			if i == idx[k-1]+1 {
				b.WriteString("\n")
			} else {
				b.WriteString(gapMarker)
			}
		}
		b.WriteString(chunks[i])
	}
	return b.String()
}

var (
	parenthetical = regexp.MustCompile(`\s*\([^)]*\)`)
	transition    = regexp.MustCompile(`^(INT\.|EXT\.|INT/EXT|I/E|FADE|CUT TO|DISSOLVE|SMASH CUT|MATCH CUT|THE END|CONTINUED|TITLE)`)
)

// CueCharacters finds speaking characters from uppercase cue lines.
//
// Description:
//
//	A cue is a short line with no lowercase letters that is not a scene
//	heading or transition. Extensions such as (V.O.) are ignored. Names
//	cued at least minCues times are returned, most frequent first.
func CueCharacters(text string, minCues int) []string {
	counts := make(map[string]int)
	for _, line := range strings.Split(text, "\n") {
		name := strings.TrimSpace(parenthetical.ReplaceAllString(strings.TrimSpace(line), ""))
		if !isCue(name) {
			continue
		}
		counts[name]++
	}

	names := make([]string, 0, len(counts))
	for name, c := range counts {
		if c >= minCues {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

func isCue(s string) bool {
	if s == "" || len(s) > 30 || transition.MatchString(s) || strings.HasSuffix(s, ":") {
		return false
	}
	letters := 0
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			return false
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r), r == ' ', r == '.', r == '\'', r == '-':
		default:
			return false
		}
	}
	return letters >= 2
}
