// Package tokens measures composed prompts against a token budget.
package tokens

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts tokens with a fixed tiktoken encoding.
type Counter struct {
	encoding tokenizer.Encoding

	once  sync.Once
	codec tokenizer.Codec
	err   error
}

// NewCounter returns a cl100k_base counter. The codec is loaded on first use.
func NewCounter() *Counter {
	return &Counter{encoding: tokenizer.Cl100kBase}
}

func (c *Counter) load() (tokenizer.Codec, error) {
	c.once.Do(func() {
		c.codec, c.err = tokenizer.Get(c.encoding)
	})
	return c.codec, c.err
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) (int, error) {
	codec, err := c.load()
	if err != nil {
		return 0, fmt.Errorf("failed to load %s codec: %w", c.encoding, err)
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Budget reports whether prompts stay under a limit. A zero limit never
// reports an overrun.
type Budget struct {
	Limit   int
	counter *Counter
}

// NewBudget creates a Budget backed by a cl100k_base counter.
func NewBudget(limit int) *Budget {
	return &Budget{Limit: limit, counter: NewCounter()}
}

// Check returns the token count and whether it exceeds the limit.
func (b *Budget) Check(text string) (count int, over bool, err error) {
	count, err = b.counter.Count(text)
	if err != nil {
		return 0, false, err
	}
	return count, b.Limit > 0 && count > b.Limit, nil
}
