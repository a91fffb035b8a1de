// internal/assemble/assembler.go

// Package assemble shapes raw assistant replies for the transport:
// collapsing wasted vertical space and splitting oversized text into
// chunks at or under the transport's message limit.
package assemble

import (
	"regexp"
	"strings"
)

// blankRuns matches three or more consecutive newlines (two or more blank
// lines), which get collapsed to a single blank line.
var blankRuns = regexp.MustCompile(`\n{3,}`)

// Assembler splits reply text into transport-sized chunks.
type Assembler struct {
	limit int
}

// New creates an assembler for the given per-message character limit.
func New(limit int) *Assembler {
	return &Assembler{limit: limit}
}

// Assemble normalizes raw text and returns the ordered chunks to send.
// Splits land on the newline boundary nearest under the limit, falling
// back to a space and then a hard cut, never inside a bold marker pair's
// "**" token.
func (a *Assembler) Assemble(raw string) []string {
	text := strings.TrimSpace(blankRuns.ReplaceAllString(raw, "\n\n"))
	if text == "" {
		return nil
	}
	if len(text) <= a.limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= a.limit {
			chunks = append(chunks, text)
			break
		}
		cut := a.cutPoint(text)
		chunks = append(chunks, strings.TrimRight(text[:cut], "\n "))
		text = strings.TrimLeft(text[cut:], "\n ")
	}
	return chunks
}

// cutPoint finds where to split text so the first piece fits the limit.
func (a *Assembler) cutPoint(text string) int {
	window := text[:a.limit]

	if i := strings.LastIndexByte(window, '\n'); i > 0 {
		return i
	}
	if i := strings.LastIndexByte(window, ' '); i > 0 {
		return i
	}

	// Hard cut. Back off one byte if it would land between the two stars
	// of a "**" marker.
	cut := a.limit
	if cut < len(text) && text[cut-1] == '*' && text[cut] == '*' {
		cut--
	}
	if cut == 0 {
		cut = a.limit
	}
	return cut
}
