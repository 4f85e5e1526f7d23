package paperback

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTreeShape indicates the tree shape and the symbol sequence
	// disagree. This is a programming error or a corrupt blob, never a
	// transient condition.
	ErrTreeShape = errors.New("tree shape does not match symbol sequence")
	// ErrBadNode indicates a node that is neither a collection nor a leaf
	// of a known kind.
	ErrBadNode = errors.New("malformed document tree node")
)

// Node is one element of a document tree: a Collection of named children,
// a RawLeaf holding text, or a CompressedLeaf holding packed symbol ids.
// The tree shape never changes across compression; only leaf payloads do.
type Node interface {
	node()
}

// Entry is a named child of a Collection.
type Entry struct {
	Name  string
	Child Node
}

// Collection is an ordered list of named children (a book, a chapter
// split into parts, or the whole library).
type Collection []Entry

// RawLeaf is uncompressed text.
type RawLeaf string

// CompressedLeaf is a run of symbol ids, one byte per symbol.
type CompressedLeaf []byte

func (Collection) node()     {}
func (RawLeaf) node()        {}
func (CompressedLeaf) node() {}

// flatten concatenates every leaf's text in visiting order, joining leaves
// with a NUL byte. Collection names contribute nothing: they are compiled
// as plain text later and never enter the training corpus.
func flatten(n Node) ([]byte, error) {
	var out []byte
	started := false
	err := flattenInto(&out, &started, n)
	return out, err
}

func flattenInto(out *[]byte, started *bool, n Node) error {
	switch v := n.(type) {
	case Collection:
		for _, e := range v {
			if err := flattenInto(out, started, e.Child); err != nil {
				return fmt.Errorf("%q: %w", e.Name, err)
			}
		}
		return nil
	case RawLeaf:
		if strings.IndexByte(string(v), 0) >= 0 {
			return fmt.Errorf("%w: leaf text contains NUL", ErrBadNode)
		}
		if *started {
			*out = append(*out, 0)
		}
		*started = true
		*out = append(*out, v...)
		return nil
	default:
		return fmt.Errorf("%w: cannot flatten %T", ErrBadNode, n)
	}
}

// inflate walks the same shape flatten walked and carves the rewritten
// symbol sequence back into per-leaf runs, one delimiter-terminated run per
// leaf. The returned tree has every RawLeaf replaced by a CompressedLeaf.
func inflate(shape Node, seq []uint16) (Node, []uint16, error) {
	switch v := shape.(type) {
	case Collection:
		out := make(Collection, 0, len(v))
		for _, e := range v {
			child, rest, err := inflate(e.Child, seq)
			if err != nil {
				return nil, nil, fmt.Errorf("%q: %w", e.Name, err)
			}
			out = append(out, Entry{Name: e.Name, Child: child})
			seq = rest
		}
		return out, seq, nil
	case RawLeaf:
		end := -1
		for i, s := range seq {
			if s == DelimiterSymbol {
				end = i
				break
			}
		}
		if end < 0 {
			return nil, nil, fmt.Errorf("%w: sequence exhausted before leaf", ErrTreeShape)
		}
		run := make(CompressedLeaf, end)
		for i, s := range seq[:end] {
			if s >= MaxTokens {
				return nil, nil, fmt.Errorf("%w: symbol %d does not fit one byte", ErrTreeShape, s)
			}
			run[i] = byte(s)
		}
		return run, seq[end+1:], nil
	default:
		return nil, nil, fmt.Errorf("%w: cannot inflate %T", ErrBadNode, shape)
	}
}

// leafCount returns the number of leaves under n.
func leafCount(n Node) int {
	switch v := n.(type) {
	case Collection:
		total := 0
		for _, e := range v {
			total += leafCount(e.Child)
		}
		return total
	default:
		return 1
	}
}
