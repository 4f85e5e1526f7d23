package paperback

import (
	"fmt"
)

const (
	// MaxTokens is the grammar symbol budget and the slot count of the
	// packed table. Symbol ids are stored one byte each, so the table can
	// never grow past 256 slots.
	MaxTokens = 256

	// DelimiterSymbol marks a leaf boundary in the flattened corpus. It
	// sits outside the literal id range so it can never collide with a
	// table slot, and the builder never merges it into a rule.
	DelimiterSymbol = 300

	// tableBytes is the packed size of the grammar table: 256 slots of
	// two bytes each.
	tableBytes = MaxTokens * 2
)

// Rule defines a composite symbol as an ordered pair of lower-numbered
// symbols. Rule ids are assigned in creation order, so expansion only ever
// reaches strictly lower ids and cannot cycle.
type Rule struct {
	Left, Right uint16
}

// Grammar is the substitution table produced by the builder: the literal
// alphabet followed by the composite rules. Slot i holds Literals[i] for
// i < len(Literals) and Rules[i-len(Literals)] above that. It is immutable
// once built; the decompressor only reads it.
type Grammar struct {
	Literals []byte // sorted distinct corpus bytes, NUL always first
	Rules    []Rule
}

// symbolCount returns the number of defined table slots.
func (g *Grammar) symbolCount() int {
	return len(g.Literals) + len(g.Rules)
}

// Validate checks the structural invariants the decompressor relies on:
// NUL literal in slot 0, a strictly increasing literal alphabet, and every
// rule referencing only strictly lower, non-NUL symbols.
func (g *Grammar) Validate() error {
	if len(g.Literals) == 0 || g.Literals[0] != 0 {
		return fmt.Errorf("%w: literal alphabet must start with NUL", ErrCorruptBlob)
	}
	for i := 1; i < len(g.Literals); i++ {
		if g.Literals[i] <= g.Literals[i-1] {
			return fmt.Errorf("%w: literal alphabet not strictly increasing", ErrCorruptBlob)
		}
	}
	if g.symbolCount() > MaxTokens {
		return fmt.Errorf("%w: %d symbols exceed the %d budget", ErrCorruptBlob, g.symbolCount(), MaxTokens)
	}
	for i, r := range g.Rules {
		id := len(g.Literals) + i
		if r.Left == 0 || r.Right == 0 || int(r.Left) >= id || int(r.Right) >= id {
			return fmt.Errorf("%w: rule %d references invalid symbols (%d, %d)", ErrCorruptBlob, id, r.Left, r.Right)
		}
	}
	return nil
}

// Pack serializes the grammar into its fixed 512-byte table. Literal slots
// store the byte value with a zero second byte; rule slots store the
// (left, right) pair; unused trailing slots stay zero.
func (g *Grammar) Pack() ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, tableBytes)
	for i, b := range g.Literals {
		buf[2*i] = b
	}
	for j, r := range g.Rules {
		slot := len(g.Literals) + j
		buf[2*slot] = byte(r.Left)
		buf[2*slot+1] = byte(r.Right)
	}
	return buf, nil
}

// ParseTable reconstructs a Grammar from its packed 512-byte form.
//
// The literal count is not stored: slots are literal while the second byte
// is zero and the first keeps strictly increasing, rule slots follow (their
// second byte is never zero, since no rule may reference the NUL literal),
// and any remaining slots must be zero. Every structural invariant is
// checked here so that decoding can run without further validation.
func ParseTable(buf []byte) (*Grammar, error) {
	if len(buf) != tableBytes {
		return nil, fmt.Errorf("%w: grammar table is %d bytes, want %d", ErrCorruptBlob, len(buf), tableBytes)
	}
	if buf[0] != 0 || buf[1] != 0 {
		return nil, fmt.Errorf("%w: slot 0 must be the NUL literal", ErrCorruptBlob)
	}
	g := &Grammar{Literals: []byte{0}}

	i := 1
	for ; i < MaxTokens; i++ {
		b0, b1 := buf[2*i], buf[2*i+1]
		if b1 != 0 || b0 == 0 {
			break
		}
		if b0 <= g.Literals[len(g.Literals)-1] {
			return nil, fmt.Errorf("%w: literal alphabet not strictly increasing at slot %d", ErrCorruptBlob, i)
		}
		g.Literals = append(g.Literals, b0)
	}
	for ; i < MaxTokens; i++ {
		b0, b1 := buf[2*i], buf[2*i+1]
		if b1 == 0 {
			break
		}
		if b0 == 0 || int(b0) >= i || int(b1) >= i {
			return nil, fmt.Errorf("%w: rule slot %d references invalid symbols (%d, %d)", ErrCorruptBlob, i, b0, b1)
		}
		g.Rules = append(g.Rules, Rule{Left: uint16(b0), Right: uint16(b1)})
	}
	for ; i < MaxTokens; i++ {
		if buf[2*i] != 0 || buf[2*i+1] != 0 {
			return nil, fmt.Errorf("%w: unused grammar slot %d is not zero", ErrCorruptBlob, i)
		}
	}
	return g, nil
}

// buildGrammar trains a grammar over the flattened corpus and returns it
// together with the fully rewritten symbol sequence.
//
// Each iteration installs one rule: first the forced tokens (last queued
// first), then the most frequent adjacent pair that contains no delimiter,
// until the token budget is reached or no mergeable pair remains.
func buildGrammar(corpus []byte, cfg Config) (*Grammar, []uint16, error) {
	maxTokens := resolveMaxTokens(cfg)

	var present [256]bool
	present[0] = true // the delimiter byte is always part of the alphabet
	for _, b := range corpus {
		present[b] = true
	}
	g := &Grammar{}
	for b := 0; b < 256; b++ {
		if present[b] {
			g.Literals = append(g.Literals, byte(b))
		}
	}
	if len(g.Literals) > maxTokens {
		return nil, nil, fmt.Errorf("corpus alphabet has %d distinct bytes, token budget is %d", len(g.Literals), maxTokens)
	}

	var charToID [256]uint16
	for i, b := range g.Literals {
		charToID[b] = uint16(i)
	}
	charToID[0] = DelimiterSymbol

	seq := make([]uint16, len(corpus))
	for i, b := range corpus {
		seq[i] = charToID[b]
	}

	report := func() {
		if cfg.Progress != nil {
			cfg.Progress(len(seq), len(g.Rules))
		}
	}

	// Forced tokens get their rules before any frequency-driven ones. A
	// token of n symbols installs a left-leaning chain of n-1 binary rules
	// whose final symbol replaces the whole group in the sequence.
	for i := len(cfg.ForcedTokens) - 1; i >= 0; i-- {
		token := cfg.ForcedTokens[i]
		group, err := literalGroup(token, &present, &charToID)
		if err != nil {
			return nil, nil, err
		}
		if g.symbolCount()+len(group)-1 > maxTokens {
			return nil, nil, fmt.Errorf("token budget %d too small for forced token %q", maxTokens, token)
		}
		cur := group[0]
		for _, s := range group[1:] {
			id := uint16(g.symbolCount())
			g.Rules = append(g.Rules, Rule{Left: cur, Right: s})
			cur = id
		}
		seq = rewrite(seq, group, cur)
		report()
	}

	for g.symbolCount() < maxTokens {
		left, right, ok := bestPair(seq)
		if !ok {
			break // grammar exhaustion: nothing mergeable remains
		}
		id := uint16(g.symbolCount())
		g.Rules = append(g.Rules, Rule{Left: left, Right: right})
		seq = rewrite(seq, []uint16{left, right}, id)
		report()
	}
	return g, seq, nil
}

// literalGroup maps a forced token to its literal symbol ids.
func literalGroup(token string, present *[256]bool, charToID *[256]uint16) ([]uint16, error) {
	if len(token) < 2 {
		return nil, fmt.Errorf("forced token %q is shorter than two characters", token)
	}
	group := make([]uint16, len(token))
	for i := 0; i < len(token); i++ {
		b := token[i]
		if b == 0 || !present[b] {
			return nil, fmt.Errorf("forced token %q contains byte %#x outside the corpus alphabet", token, b)
		}
		group[i] = charToID[b]
	}
	return group, nil
}

// bestPair finds the most frequent adjacent symbol pair, skipping any pair
// that touches the delimiter. Ties break toward the pair first encountered
// in scan order, which keeps the builder deterministic.
func bestPair(seq []uint16) (left, right uint16, ok bool) {
	counts := make(map[uint32]int, 1024)
	firstSeen := make(map[uint32]int, 1024)
	for i := 0; i+1 < len(seq); i++ {
		a, b := seq[i], seq[i+1]
		if a == DelimiterSymbol || b == DelimiterSymbol {
			continue
		}
		k := uint32(a)<<16 | uint32(b)
		if counts[k] == 0 {
			firstSeen[k] = i
		}
		counts[k]++
	}
	var bestKey uint32
	bestCount, bestOrder := 0, 0
	for k, c := range counts {
		o := firstSeen[k]
		if c > bestCount || (c == bestCount && o < bestOrder) {
			bestKey, bestCount, bestOrder = k, c, o
		}
	}
	if bestCount == 0 {
		return 0, 0, false
	}
	return uint16(bestKey >> 16), uint16(bestKey & 0xFFFF), true
}

// rewrite replaces every leftmost non-overlapping occurrence of group with
// id, in place. The write position never catches up with the read position
// because a match always shrinks the sequence.
func rewrite(seq []uint16, group []uint16, id uint16) []uint16 {
	dst := 0
	i := 0
	for i < len(seq) {
		if seq[i] == group[0] && matchAt(seq, i, group) {
			seq[dst] = id
			dst++
			i += len(group)
		} else {
			seq[dst] = seq[i]
			dst++
			i++
		}
	}
	return seq[:dst]
}

func matchAt(seq []uint16, i int, group []uint16) bool {
	if i+len(group) > len(seq) {
		return false
	}
	for j, s := range group {
		if seq[i+j] != s {
			return false
		}
	}
	return true
}
