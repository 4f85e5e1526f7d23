// Package reader is the device-side view of a compiled blob: navigation
// over the document tree plus cached paragraph decoding. The UI layer only
// ever sees entry names and decoded paragraphs, never symbols.
package reader

import (
	"fmt"
	"io"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kstone/paperback"
)

// chapterCacheSize bounds how many decoded text blocks stay resident. The
// UI re-renders the current block on every page turn, so even a handful of
// entries removes almost all repeat decoding.
const chapterCacheSize = 8

// Reader navigates one compiled blob.
type Reader struct {
	blob  *paperback.Blob
	cache *lru.Cache[string, []string]
}

// New wraps an already-parsed blob. The grammar is re-validated so a
// hand-assembled blob fails here rather than mid-decode.
func New(b *paperback.Blob) (*Reader, error) {
	if b == nil || b.Grammar == nil {
		return nil, fmt.Errorf("reader: nil blob")
	}
	if err := b.Grammar.Validate(); err != nil {
		return nil, err
	}
	cache, err := lru.New[string, []string](chapterCacheSize)
	if err != nil {
		return nil, err
	}
	return &Reader{blob: b, cache: cache}, nil
}

// Open reads and validates one blob from r.
func Open(r io.Reader) (*Reader, error) {
	var b paperback.Blob
	if _, err := b.ReadFrom(r); err != nil {
		return nil, err
	}
	return New(&b)
}

// Meta returns the blob's build metadata string.
func (r *Reader) Meta() string {
	return string(r.blob.Meta)
}

// lookup resolves a path of entry names from the root, first match wins.
func (r *Reader) lookup(path []string) (paperback.Node, error) {
	var n paperback.Node = r.blob.Root
	for _, name := range path {
		c, ok := n.(paperback.Collection)
		if !ok {
			return nil, fmt.Errorf("reader: %q is a text block, not a collection", name)
		}
		found := false
		for _, e := range c {
			if e.Name == name {
				n = e.Child
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("reader: no entry named %q", name)
		}
	}
	return n, nil
}

// Entries lists the child names of the collection at path. The root is
// path-less: r.Entries() lists the books.
func (r *Reader) Entries(path ...string) ([]string, error) {
	n, err := r.lookup(path)
	if err != nil {
		return nil, err
	}
	c, ok := n.(paperback.Collection)
	if !ok {
		return nil, fmt.Errorf("reader: %q is a text block, not a collection", strings.Join(path, "/"))
	}
	names := make([]string, len(c))
	for i, e := range c {
		names[i] = e.Name
	}
	return names, nil
}

// IsLeaf reports whether path names a text block rather than a collection.
func (r *Reader) IsLeaf(path ...string) (bool, error) {
	n, err := r.lookup(path)
	if err != nil {
		return false, err
	}
	_, ok := n.(paperback.Collection)
	return !ok, nil
}

// Paragraphs decodes the text block at path. Decoded blocks are memoized
// in a small LRU cache; the returned slice is shared and must not be
// modified.
func (r *Reader) Paragraphs(path ...string) ([]string, error) {
	key := strings.Join(path, "\x00")
	if out, ok := r.cache.Get(key); ok {
		return out, nil
	}
	n, err := r.lookup(path)
	if err != nil {
		return nil, err
	}
	var out []string
	switch v := n.(type) {
	case paperback.CompressedLeaf:
		out, err = paperback.DecompressParagraphs(r.blob.Grammar, v)
		if err != nil {
			return nil, fmt.Errorf("reader: %q: %w", strings.Join(path, "/"), err)
		}
	case paperback.RawLeaf:
		out = splitParagraphs(string(v))
	default:
		return nil, fmt.Errorf("reader: %q is a collection, not a text block", strings.Join(path, "/"))
	}
	r.cache.Add(key, out)
	return out, nil
}

// Scanner returns a lazy paragraph scanner over the compressed block at
// path, bypassing the cache. Useful when only the first screenful is
// needed.
func (r *Reader) Scanner(path ...string) (*paperback.ParagraphScanner, error) {
	n, err := r.lookup(path)
	if err != nil {
		return nil, err
	}
	leaf, ok := n.(paperback.CompressedLeaf)
	if !ok {
		return nil, fmt.Errorf("reader: %q is not a compressed text block", strings.Join(path, "/"))
	}
	return paperback.NewParagraphScanner(r.blob.Grammar, leaf), nil
}

// splitParagraphs mirrors the decompressor's paragraph convention for raw
// leaves: one paragraph per newline, no empty trailing paragraph.
func splitParagraphs(text string) []string {
	parts := strings.Split(text, "\n")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
