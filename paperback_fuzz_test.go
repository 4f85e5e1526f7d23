package paperback

import (
	"strings"
	"testing"
)

// FuzzCompressRoundTrip feeds arbitrary document pairs through the full
// pipeline: sanitize, compress, pack, parse, decompress, compare.
func FuzzCompressRoundTrip(f *testing.F) {
	f.Add("hello", "world")
	f.Add("aaab", "aaab")
	f.Add("", "")
	f.Add("one paragraph\n\nanother paragraph", "a")
	f.Add("\n\n\n", "newlines only")
	f.Add(strings.Repeat("ab", 40), strings.Repeat("ba", 40))
	f.Add("tab\there", "smart “quotes” and café")
	f.Add("null\x00byte", "high\xffbyte")

	f.Fuzz(func(t *testing.T, a, b string) {
		// the pipeline contract starts after sanitization
		a = Sanitize(a, '_')
		b = Sanitize(b, '_')

		tree := Collection{
			{Name: "first", Child: Collection{
				{Name: "a", Child: RawLeaf(a)},
				{Name: "b", Child: RawLeaf(b)},
			}},
			{Name: "second", Child: Collection{
				{Name: "joined", Child: RawLeaf(a + "\n" + b)},
			}},
		}

		g, compressed, err := Compress(tree)
		if err != nil {
			t.Fatalf("Compress failed: %v", err)
		}

		// the grammar must survive its packed form
		table, err := g.Pack()
		if err != nil {
			t.Fatalf("Pack failed: %v", err)
		}
		parsed, err := ParseTable(table)
		if err != nil {
			t.Fatalf("ParseTable failed: %v", err)
		}

		for i, r := range parsed.Rules {
			if r.Left == DelimiterSymbol || r.Right == DelimiterSymbol {
				t.Fatalf("rule %d merged the delimiter", i)
			}
		}

		assertLeavesDecode(t, parsed, tree, compressed, "")
	})
}

// FuzzParseBlob throws arbitrary bytes at the blob parser; it must reject
// or accept, never panic, and anything accepted must decode cleanly.
func FuzzParseBlob(f *testing.F) {
	valid := func() []byte {
		g, compressed, err := Compress(Collection{
			{Name: "doc", Child: RawLeaf("a small seed document\n\nwith two paragraphs")},
		})
		if err != nil {
			f.Fatal(err)
		}
		blob := &Blob{Meta: []byte("seed"), Grammar: g, Root: compressed.(Collection)}
		data, err := blob.Bytes()
		if err != nil {
			f.Fatal(err)
		}
		return data
	}()
	f.Add(valid)
	f.Add([]byte{})
	f.Add([]byte{0, 0, 0, 0})
	f.Add(valid[:len(valid)/2])

	f.Fuzz(func(t *testing.T, data []byte) {
		blob, err := ParseBlob(data)
		if err != nil {
			return
		}
		var walk func(Node)
		walk = func(n Node) {
			switch v := n.(type) {
			case Collection:
				for _, e := range v {
					walk(e.Child)
				}
			case CompressedLeaf:
				// validation accepted the blob, so decoding may not fail
				if _, err := DecompressParagraphs(blob.Grammar, v); err != nil {
					t.Fatalf("validated blob failed to decode: %v", err)
				}
			}
		}
		walk(blob.Root)
	})
}
