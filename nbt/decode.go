package nbt

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// MaxDepth bounds the nesting of lists and compounds. Depth is
// input-controlled, so the decoder refuses trees deeper than this
// instead of risking stack exhaustion on corrupt data. The bound is a
// decoder limit, not a format rule.
const MaxDepth = 512

// Decode parses data as a single named root compound and returns the
// root tag. The root name is discarded; use DecodeNamed to keep it.
func Decode(data []byte) (Tag, error) {
	_, root, err := DecodeNamed(data)
	return root, err
}

// DecodeNamed parses data as a single named root compound and returns
// the root name alongside the tag.
//
// Decoding consumes the entire input; trailing bytes after the root
// compound are an error.
func DecodeNamed(data []byte) (string, Tag, error) {
	d := &decoder{data: data}

	kind, err := d.readKind()
	if err != nil {
		return "", Tag{}, err
	}
	if kind != TagCompound {
		return "", Tag{}, fmt.Errorf("%w: root is %s, want Compound", ErrInvalidTagKind, kind)
	}

	name, err := d.readString()
	if err != nil {
		return "", Tag{}, err
	}

	root, err := d.readValue(TagCompound, 0)
	if err != nil {
		return "", Tag{}, err
	}

	if rest := len(d.data) - d.off; rest > 0 {
		return "", Tag{}, fmt.Errorf("nbt: %d trailing bytes after root compound", rest)
	}
	return name, root, nil
}

// decoder is a cursor over the input buffer. All reads bounds-check
// before advancing, so a failed read leaves off unchanged.
type decoder struct {
	data []byte
	off  int
}

func (d *decoder) remaining() int {
	return len(d.data) - d.off
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || d.remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrUnexpectedEnd, n, d.off, d.remaining())
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) readKind() (Kind, error) {
	b, err := d.take(1)
	if err != nil {
		return TagEnd, err
	}
	kind := Kind(b[0])
	if !kind.valid() {
		return TagEnd, fmt.Errorf("%w: %d at offset %d", ErrInvalidTagKind, b[0], d.off-1)
	}
	return kind, nil
}

func (d *decoder) readUint16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *decoder) readInt32() (int32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// readString reads a 2-byte length-prefixed UTF-8 string.
func (d *decoder) readString() (string, error) {
	n, err := d.readUint16()
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w at offset %d", ErrStringEncoding, d.off-int(n))
	}
	return string(b), nil
}

// readCount reads a 4-byte element count and rejects negatives.
func (d *decoder) readCount() (int, error) {
	n, err := d.readInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("nbt: negative length %d at offset %d", n, d.off-4)
	}
	return int(n), nil
}

// readValue parses one value of the given kind. Kind bytes and names
// have already been consumed by the caller; list elements carry
// neither, so this is also the per-element entry point.
func (d *decoder) readValue(kind Kind, depth int) (Tag, error) {
	switch kind {
	case TagByte:
		b, err := d.take(1)
		if err != nil {
			return Tag{}, err
		}
		return Tag{kind: kind, num: uint64(b[0])}, nil

	case TagShort:
		v, err := d.readUint16()
		if err != nil {
			return Tag{}, err
		}
		return Tag{kind: kind, num: uint64(v)}, nil

	case TagInt, TagFloat:
		b, err := d.take(4)
		if err != nil {
			return Tag{}, err
		}
		return Tag{kind: kind, num: uint64(binary.BigEndian.Uint32(b))}, nil

	case TagLong, TagDouble:
		b, err := d.take(8)
		if err != nil {
			return Tag{}, err
		}
		return Tag{kind: kind, num: binary.BigEndian.Uint64(b)}, nil

	case TagString:
		s, err := d.readString()
		if err != nil {
			return Tag{}, err
		}
		return Tag{kind: kind, str: s}, nil

	case TagByteArray:
		n, err := d.readCount()
		if err != nil {
			return Tag{}, err
		}
		b, err := d.take(n)
		if err != nil {
			return Tag{}, err
		}
		raw := make([]byte, n)
		copy(raw, b)
		return Tag{kind: kind, raw: raw}, nil

	case TagIntArray:
		n, err := d.readCount()
		if err != nil {
			return Tag{}, err
		}
		b, err := d.take(n * 4)
		if err != nil {
			return Tag{}, err
		}
		ints := make([]int32, n)
		for i := range ints {
			ints[i] = int32(binary.BigEndian.Uint32(b[i*4:]))
		}
		return Tag{kind: kind, ints: ints}, nil

	case TagLongArray:
		n, err := d.readCount()
		if err != nil {
			return Tag{}, err
		}
		b, err := d.take(n * 8)
		if err != nil {
			return Tag{}, err
		}
		longs := make([]int64, n)
		for i := range longs {
			longs[i] = int64(binary.BigEndian.Uint64(b[i*8:]))
		}
		return Tag{kind: kind, longs: longs}, nil

	case TagList:
		return d.readList(depth)

	case TagCompound:
		return d.readCompound(depth)

	default:
		// TagEnd: never a value. Callers only pass kinds they read
		// through readKind, so this is the End-as-value case.
		return Tag{}, fmt.Errorf("%w: End is not a value kind", ErrInvalidTagKind)
	}
}

func (d *decoder) readList(depth int) (Tag, error) {
	if depth >= MaxDepth {
		return Tag{}, ErrDepthLimit
	}

	elem, err := d.readKind()
	if err != nil {
		return Tag{}, err
	}
	n, err := d.readCount()
	if err != nil {
		return Tag{}, err
	}

	// Empty lists of End are legal and common; a non-empty list of End
	// has no decodable elements.
	if elem == TagEnd && n > 0 {
		return Tag{}, fmt.Errorf("%w: list of End with %d elements", ErrInvalidTagKind, n)
	}

	// Elements carry no per-element kind byte; the declared kind is
	// trusted for every slot. Cap the initial allocation so a corrupt
	// count cannot force a huge up-front allocation.
	capHint := n
	if capHint > d.remaining() {
		capHint = d.remaining()
	}
	list := make([]Tag, 0, capHint)
	for range n {
		v, err := d.readValue(elem, depth+1)
		if err != nil {
			return Tag{}, err
		}
		list = append(list, v)
	}
	return Tag{kind: TagList, elem: elem, list: list}, nil
}

func (d *decoder) readCompound(depth int) (Tag, error) {
	if depth >= MaxDepth {
		return Tag{}, ErrDepthLimit
	}

	comp := &compound{}
	for {
		kind, err := d.readKind()
		if err != nil {
			return Tag{}, err
		}
		if kind == TagEnd {
			return Tag{kind: TagCompound, comp: comp}, nil
		}

		name, err := d.readString()
		if err != nil {
			return Tag{}, err
		}
		value, err := d.readValue(kind, depth+1)
		if err != nil {
			return Tag{}, err
		}
		if err := comp.add(name, value); err != nil {
			return Tag{}, err
		}
	}
}
