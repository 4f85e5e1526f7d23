package paperback

import (
	"fmt"
)

// ParagraphScanner expands a compressed symbol run back to text, one
// paragraph at a time, in the style of bufio.Scanner:
//
//	sc := NewParagraphScanner(grammar, leaf)
//	for sc.Scan() {
//		render(sc.Text())
//	}
//	if err := sc.Err(); err != nil { ... }
//
// Expansion uses an explicit fixed-capacity stack instead of recursion:
// rule chains can nest up to the full token budget, which is deeper than a
// constrained target's call stack should be asked to go. Popping a literal
// newline completes a paragraph; popping a composite pushes its right then
// left symbol so expansion stays left-to-right. The scanner holds no
// resources and is abandoned by simply not calling Scan again.
type ParagraphScanner struct {
	grammar *Grammar
	symbols []byte
	pos     int
	stack   []uint16
	buf     []byte
	text    string
	err     error
	done    bool
}

// NewParagraphScanner returns a scanner over one compressed leaf payload.
// The grammar is read, never written; one grammar serves any number of
// concurrent scanners.
func NewParagraphScanner(g *Grammar, symbols []byte) *ParagraphScanner {
	return &ParagraphScanner{
		grammar: g,
		symbols: symbols,
		stack:   make([]uint16, 0, MaxTokens),
	}
}

// Scan advances to the next paragraph. It returns false at the end of the
// payload or on a corrupt grammar; Err distinguishes the two.
func (s *ParagraphScanner) Scan() bool {
	if s.done || s.err != nil {
		return false
	}
	s.buf = s.buf[:0]
	for {
		for len(s.stack) > 0 {
			id := s.stack[len(s.stack)-1]
			s.stack = s.stack[:len(s.stack)-1]

			if int(id) < len(s.grammar.Literals) {
				lit := s.grammar.Literals[id]
				if lit == '\n' {
					s.text = string(s.buf)
					return true
				}
				s.buf = append(s.buf, lit)
				continue
			}
			ri := int(id) - len(s.grammar.Literals)
			if ri >= len(s.grammar.Rules) {
				s.err = fmt.Errorf("%w: symbol %d has no grammar slot", ErrCorruptBlob, id)
				return false
			}
			if len(s.stack)+2 > cap(s.stack) {
				s.err = fmt.Errorf("%w: expansion stack overflow at symbol %d", ErrCorruptBlob, id)
				return false
			}
			r := s.grammar.Rules[ri]
			s.stack = append(s.stack, r.Right, r.Left)
		}
		if s.pos >= len(s.symbols) {
			s.done = true
			if len(s.buf) > 0 {
				s.text = string(s.buf)
				return true
			}
			return false
		}
		s.stack = append(s.stack, uint16(s.symbols[s.pos]))
		s.pos++
	}
}

// Text returns the paragraph produced by the last successful Scan, without
// its terminating newline.
func (s *ParagraphScanner) Text() string {
	return s.text
}

// Err returns the first error encountered, or nil on clean exhaustion.
func (s *ParagraphScanner) Err() error {
	return s.err
}

// DecompressParagraphs expands a whole compressed leaf payload eagerly.
func DecompressParagraphs(g *Grammar, symbols []byte) ([]string, error) {
	var out []string
	sc := NewParagraphScanner(g, symbols)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
