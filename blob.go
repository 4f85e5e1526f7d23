package paperback

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Wire format (little-endian throughout):
//
//	[4B length][metadata bytes]          free-form build info
//	[4B length=512][grammar table]       256 slots x 2 bytes, see ParseTable
//	[4B length][compiled document tree]
//
// The tree section is a concatenation of node records:
//
//	[1B type]                        0=collection, 1=raw leaf, 2=compressed leaf
//	[4B name_len][name bytes]        sanitized ASCII
//	[4B payload_len][payload bytes]  child records | ASCII text | symbol ids
//
// A collection's payload is the concatenation of its children's full
// records, recursively. Compressed leaf payloads store one symbol id per
// byte.
const (
	nodeCollection     = 0
	nodeRawLeaf        = 1
	nodeCompressedLeaf = 2

	maxSectionBytes = 1 << 30 // 1 GiB
)

// ErrCorruptBlob indicates a blob that fails structural validation. It is
// reported at load time, before any decode is attempted.
var ErrCorruptBlob = errors.New("corrupt blob")

// Blob is one compiled library: build metadata, the grammar, and the
// document tree. Produced once offline, consumed read-only on-device.
type Blob struct {
	Meta    []byte
	Grammar *Grammar
	Root    Collection
}

// Bytes serializes the blob.
func (b *Blob) Bytes() ([]byte, error) {
	if b.Grammar == nil {
		return nil, fmt.Errorf("%w: missing grammar", ErrCorruptBlob)
	}
	table, err := b.Grammar.Pack()
	if err != nil {
		return nil, err
	}
	tree, err := appendRecords(nil, b.Root)
	if err != nil {
		return nil, err
	}
	if len(b.Meta) > maxSectionBytes || len(tree) > maxSectionBytes {
		return nil, fmt.Errorf("%w: section too large", ErrCorruptBlob)
	}
	out := appendChunk(nil, b.Meta)
	out = appendChunk(out, table)
	out = appendChunk(out, tree)
	return out, nil
}

// WriteTo writes the serialized blob to w.
func (b *Blob) WriteTo(w io.Writer) (int64, error) {
	data, err := b.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	if err == nil && n != len(data) {
		err = io.ErrShortWrite
	}
	return int64(n), err
}

// ReadFrom reads one blob from r, validating every section before any of
// it is handed to a decoder.
func (b *Blob) ReadFrom(r io.Reader) (int64, error) {
	var total int64
	meta, n, err := readSection(r, "metadata")
	total += n
	if err != nil {
		return total, err
	}
	table, n, err := readSection(r, "grammar")
	total += n
	if err != nil {
		return total, err
	}
	tree, n, err := readSection(r, "document tree")
	total += n
	if err != nil {
		return total, err
	}
	g, err := ParseTable(table)
	if err != nil {
		return total, err
	}
	root, err := parseRecords(tree, g.symbolCount())
	if err != nil {
		return total, err
	}
	b.Meta = meta
	b.Grammar = g
	b.Root = root
	return total, nil
}

// ParseBlob parses a fully materialized blob. Unlike ReadFrom it also
// rejects trailing bytes, so the three section lengths must account for
// the entire buffer.
func ParseBlob(data []byte) (*Blob, error) {
	var b Blob
	r := bytes.NewReader(data)
	n, err := b.ReadFrom(r)
	if err != nil {
		return nil, err
	}
	if int(n) != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes after document tree", ErrCorruptBlob, len(data)-int(n))
	}
	return &b, nil
}

func appendChunk(dst, b []byte) []byte {
	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(b)))
	dst = append(dst, l[:]...)
	return append(dst, b...)
}

func readSection(r io.Reader, what string) ([]byte, int64, error) {
	var l [4]byte
	n, err := io.ReadFull(r, l[:])
	if err != nil {
		return nil, int64(n), fmt.Errorf("%w: reading %s length: %v", ErrCorruptBlob, what, err)
	}
	size := binary.LittleEndian.Uint32(l[:])
	if size > maxSectionBytes {
		return nil, int64(n), fmt.Errorf("%w: %s section of %d bytes exceeds limit", ErrCorruptBlob, what, size)
	}
	// copy rather than preallocate: the length prefix is untrusted
	var buf bytes.Buffer
	m, err := io.CopyN(&buf, r, int64(size))
	total := int64(n) + m
	if err != nil {
		return nil, total, fmt.Errorf("%w: %s section truncated: %v", ErrCorruptBlob, what, err)
	}
	return buf.Bytes(), total, nil
}

// appendRecords encodes every entry of a collection. Node names and raw
// leaf text must already be sanitized; bytes outside the charset are
// rejected rather than silently rewritten.
func appendRecords(dst []byte, c Collection) ([]byte, error) {
	for _, e := range c {
		var err error
		dst, err = appendRecord(dst, e.Name, e.Child)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", e.Name, err)
		}
	}
	return dst, nil
}

func appendRecord(dst []byte, name string, n Node) ([]byte, error) {
	var typ byte
	var payload []byte
	switch v := n.(type) {
	case Collection:
		typ = nodeCollection
		var err error
		payload, err = appendRecords(nil, v)
		if err != nil {
			return nil, err
		}
	case RawLeaf:
		typ = nodeRawLeaf
		if i := firstOutsideCharset(string(v)); i >= 0 {
			return nil, fmt.Errorf("%w: leaf text has byte outside charset at offset %d", ErrBadNode, i)
		}
		payload = []byte(v)
	case CompressedLeaf:
		typ = nodeCompressedLeaf
		payload = v
	default:
		return nil, fmt.Errorf("%w: cannot serialize %T", ErrBadNode, n)
	}
	if i := firstOutsideCharset(name); i >= 0 {
		return nil, fmt.Errorf("%w: name has byte outside charset at offset %d", ErrBadNode, i)
	}
	dst = append(dst, typ)
	dst = appendChunk(dst, []byte(name))
	return appendChunk(dst, payload), nil
}

// parseRecords decodes a run of node records. symbolLimit is the number
// of defined grammar slots; compressed payloads referencing anything above
// it are rejected here, at load time, rather than mid-decode.
func parseRecords(data []byte, symbolLimit int) (Collection, error) {
	var out Collection
	for len(data) > 0 {
		typ := data[0]
		name, rest, err := readChunk(data[1:])
		if err != nil {
			return nil, fmt.Errorf("%w: node name: %v", ErrCorruptBlob, err)
		}
		payload, rest, err := readChunk(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: node %q payload: %v", ErrCorruptBlob, name, err)
		}
		var child Node
		switch typ {
		case nodeCollection:
			child, err = parseRecords(payload, symbolLimit)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", name, err)
			}
		case nodeRawLeaf:
			child = RawLeaf(payload)
		case nodeCompressedLeaf:
			for i, id := range payload {
				if int(id) >= symbolLimit {
					return nil, fmt.Errorf("%w: node %q symbol %d at offset %d has no grammar slot", ErrCorruptBlob, name, id, i)
				}
			}
			child = CompressedLeaf(payload)
		default:
			return nil, fmt.Errorf("%w: node %q has unknown type %d", ErrCorruptBlob, name, typ)
		}
		out = append(out, Entry{Name: string(name), Child: child})
		data = rest
	}
	return out, nil
}

func readChunk(data []byte) ([]byte, []byte, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("truncated length prefix")
	}
	size := binary.LittleEndian.Uint32(data)
	if uint32(len(data)-4) < size {
		return nil, nil, fmt.Errorf("length %d exceeds remaining %d bytes", size, len(data)-4)
	}
	return data[4 : 4+size], data[4+size:], nil
}
