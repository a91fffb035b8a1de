// internal/dispatch/truncate.go
package dispatch

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Truncator caps capability output at a token budget so one verbose tool
// result cannot consume the run's context window.
type Truncator struct {
	tokenizer *tiktoken.Tiktoken
	budget    int
}

// NewTruncator creates a truncator for the given model's tokenizer,
// falling back to cl100k_base for unknown models.
func NewTruncator(model string, budget int) (*Truncator, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Truncator{tokenizer: enc, budget: budget}, nil
}

// Truncate returns text unchanged when within budget, otherwise the first
// budget tokens followed by a truncation marker.
func (t *Truncator) Truncate(text string) string {
	tokens := t.tokenizer.Encode(text, nil, nil)
	if len(tokens) <= t.budget {
		return text
	}
	head := t.tokenizer.Decode(tokens[:t.budget])
	return head + fmt.Sprintf("\n[truncated: %d of %d tokens shown]", t.budget, len(tokens))
}
