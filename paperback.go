// Package paperback compresses small libraries of short text documents
// into a self-contained binary blob that a memory-constrained device can
// read back one paragraph at a time.
//
// The compressor trains a substitution grammar of at most 256 symbols over
// the whole corpus by greedy byte-pair merging, rewrites every document
// through it, and packs the grammar table and the document tree into a
// fixed-layout blob. Decompression walks the grammar with an explicit
// bounded stack, so it needs neither recursion nor dynamic parsing.
package paperback

import (
	"fmt"
)

// Config holds compression settings.
type Config struct {
	MaxTokens    int                         // symbol budget (0 = 256, clamped to 256)
	ForcedTokens []string                    // substrings guaranteed a dedicated symbol
	Progress     func(seqLen, ruleCount int) // observational, called once per rule
}

// Option is a functional option for configuring compression.
type Option func(*Config)

// WithMaxTokens sets the grammar symbol budget. Values outside (0, 256]
// are clamped.
func WithMaxTokens(n int) Option {
	return func(c *Config) {
		c.MaxTokens = n
	}
}

// WithForcedTokens registers substrings that receive dedicated grammar
// symbols before any frequency-driven allocation. The last token listed
// becomes the first rule.
func WithForcedTokens(tokens ...string) Option {
	return func(c *Config) {
		c.ForcedTokens = tokens
	}
}

// WithProgress installs a callback receiving the current sequence length
// and rule count after every installed rule. Purely observational.
func WithProgress(fn func(seqLen, ruleCount int)) Option {
	return func(c *Config) {
		c.Progress = fn
	}
}

func resolveMaxTokens(cfg Config) int {
	if cfg.MaxTokens <= 0 || cfg.MaxTokens > MaxTokens {
		return MaxTokens
	}
	return cfg.MaxTokens
}

// Compress trains a grammar over the tree's leaf text and returns it
// together with a tree of identical shape whose leaves hold compressed
// symbol runs. Leaf text must already be sanitized; the tree itself is not
// modified.
func Compress(tree Node, opts ...Option) (*Grammar, Node, error) {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}

	corpus, err := flatten(tree)
	if err != nil {
		return nil, nil, err
	}
	if leafCount(tree) > 0 {
		corpus = append(corpus, 0) // delimiter-terminate the final leaf
	}

	g, seq, err := buildGrammar(corpus, cfg)
	if err != nil {
		return nil, nil, err
	}

	compressed, rest, err := inflate(tree, seq)
	if err != nil {
		return nil, nil, err
	}
	if len(rest) != 0 {
		return nil, nil, fmt.Errorf("%w: %d symbols left over after the last leaf", ErrTreeShape, len(rest))
	}
	return g, compressed, nil
}
