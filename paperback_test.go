package paperback

import (
	"strings"
	"testing"
)

// library is a representative corpus: three documents, two to five leaves
// each, with empty leaves and multi-paragraph leaves mixed in.
func library() Collection {
	return Collection{
		{Name: "Short Stories", Child: Collection{
			{Name: "= Description =", Child: RawLeaf("A small collection of short stories.")},
			{Name: "The Lamp", Child: RawLeaf("The lamp burned low.\n\nNobody noticed until morning, when the wick was gone.")},
			{Name: "Empty Page", Child: RawLeaf("")},
			{Name: "The Door", Child: RawLeaf("The door was never locked.\nIt never needed to be.")},
		}},
		{Name: "Field Notes", Child: Collection{
			{Name: "Day One", Child: RawLeaf("Rain all day. The river rose a little.")},
			{Name: "Day Two", Child: RawLeaf("Rain again. The river rose a little more.\n\nWe moved the camp uphill.")},
		}},
		{Name: "Appendix", Child: Collection{
			{Name: "Notes", Child: Collection{
				{Name: "1/2", Child: RawLeaf("First half of the notes.")},
				{Name: "2/2", Child: RawLeaf("Second half of the notes.")},
			}},
		}},
	}
}

// expectParagraphs mirrors the decompressor's convention: one paragraph
// per newline, no empty trailing paragraph.
func expectParagraphs(text string) []string {
	parts := strings.Split(text, "\n")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func assertLeavesDecode(t *testing.T, g *Grammar, original, compressed Node, path string) {
	t.Helper()
	switch v := original.(type) {
	case Collection:
		cc := compressed.(Collection)
		for i, e := range v {
			assertLeavesDecode(t, g, e.Child, cc[i].Child, path+"/"+e.Name)
		}
	case RawLeaf:
		leaf, ok := compressed.(CompressedLeaf)
		if !ok {
			t.Fatalf("%s: expected a compressed leaf, got %T", path, compressed)
		}
		got, err := DecompressParagraphs(g, leaf)
		if err != nil {
			t.Fatalf("%s: decompress failed: %v", path, err)
		}
		want := expectParagraphs(string(v))
		if len(got) != len(want) {
			t.Fatalf("%s: expected %d paragraphs, got %d (%q)", path, len(want), len(got), got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%s: paragraph %d: expected %q, got %q", path, i, want[i], got[i])
			}
		}
	}
}

func TestCompressRoundTrip(t *testing.T) {
	tree := library()
	g, compressed, err := Compress(tree)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	assertLeavesDecode(t, g, tree, compressed, "")
}

func TestCompressRoundTripSmallBudgets(t *testing.T) {
	tree := library()
	for _, budget := range []int{64, 100, 256} {
		g, compressed, err := Compress(tree, WithMaxTokens(budget))
		if err != nil {
			t.Fatalf("budget %d: Compress failed: %v", budget, err)
		}
		assertLeavesDecode(t, g, tree, compressed, "")
	}
}

func TestCompressShrinksRepetitiveCorpus(t *testing.T) {
	text := strings.Repeat("all work and no play makes jack a dull boy. ", 50)
	tree := Collection{{Name: "x", Child: RawLeaf(text)}}
	_, compressed, err := Compress(tree)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	run := compressed.(Collection)[0].Child.(CompressedLeaf)
	if len(run) >= len(text)/4 {
		t.Errorf("repetitive corpus barely compressed: %d symbols for %d bytes", len(run), len(text))
	}
}

func TestCompressProgressReported(t *testing.T) {
	var calls int
	lastRules := -1
	_, _, err := Compress(library(), WithProgress(func(seqLen, ruleCount int) {
		calls++
		if seqLen < 0 || ruleCount < lastRules {
			t.Errorf("progress went backwards: seq %d, rules %d after %d", seqLen, ruleCount, lastRules)
		}
		lastRules = ruleCount
	}))
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if calls == 0 {
		t.Error("progress callback never invoked")
	}
}

func TestCompressEmptyTree(t *testing.T) {
	g, compressed, err := Compress(Collection{})
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if len(g.Rules) != 0 {
		t.Errorf("expected no rules for an empty tree, got %d", len(g.Rules))
	}
	if c, ok := compressed.(Collection); !ok || len(c) != 0 {
		t.Errorf("expected an empty collection back, got %#v", compressed)
	}
}

func TestCompressSingleEmptyLeaf(t *testing.T) {
	tree := Collection{{Name: "void", Child: RawLeaf("")}}
	g, compressed, err := Compress(tree)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	run := compressed.(Collection)[0].Child.(CompressedLeaf)
	if len(run) != 0 {
		t.Errorf("expected an empty run, got %v", run)
	}
	paras, err := DecompressParagraphs(g, run)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if len(paras) != 0 {
		t.Errorf("expected no paragraphs, got %q", paras)
	}
}

func TestCompressRejectsCompressedInput(t *testing.T) {
	tree := Collection{{Name: "bad", Child: CompressedLeaf{1}}}
	if _, _, err := Compress(tree); err == nil {
		t.Error("expected error compressing an already-compressed tree")
	}
}
