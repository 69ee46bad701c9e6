package nbt

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"strings"
)

// Kind identifies the payload type of a tag. Kind values are protocol
// constants stored on the wire; changing them breaks format
// compatibility.
type Kind uint8

const (
	TagEnd Kind = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

// String returns the conventional name of the kind.
func (k Kind) String() string {
	switch k {
	case TagEnd:
		return "End"
	case TagByte:
		return "Byte"
	case TagShort:
		return "Short"
	case TagInt:
		return "Int"
	case TagLong:
		return "Long"
	case TagFloat:
		return "Float"
	case TagDouble:
		return "Double"
	case TagByteArray:
		return "ByteArray"
	case TagString:
		return "String"
	case TagList:
		return "List"
	case TagCompound:
		return "Compound"
	case TagIntArray:
		return "IntArray"
	case TagLongArray:
		return "LongArray"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// valid reports whether k is within the closed kind enumeration.
func (k Kind) valid() bool {
	return k <= TagLongArray
}

// Sentinel errors returned by decoding and tree access.
var (
	// ErrInvalidTagKind is returned when a kind byte is outside the
	// closed enumeration, or when End appears where a value kind is
	// required (root, or the element kind of a non-empty list).
	ErrInvalidTagKind = errors.New("nbt: invalid tag kind")

	// ErrUnexpectedEnd is returned when the input ends in the middle
	// of a value.
	ErrUnexpectedEnd = errors.New("nbt: unexpected end of data")

	// ErrStringEncoding is returned when string bytes are not valid UTF-8.
	ErrStringEncoding = errors.New("nbt: invalid string encoding")

	// ErrDepthLimit is returned when nesting exceeds MaxDepth.
	ErrDepthLimit = errors.New("nbt: depth limit exceeded")

	// ErrDuplicateName is returned when a compound contains the same
	// name twice.
	ErrDuplicateName = errors.New("nbt: duplicate name in compound")

	// ErrTagType is returned by accessors when the tag holds a
	// different kind than requested.
	ErrTagType = errors.New("nbt: tag type mismatch")

	// ErrTagNotFound is returned by compound lookups for missing names.
	ErrTagNotFound = errors.New("nbt: tag not found")

	// ErrIndexOutOfRange is returned by list indexing outside [0, Len).
	ErrIndexOutOfRange = errors.New("nbt: list index out of range")
)

// Tag is one node of a decoded tree. The zero value is an End tag.
//
// Tags are immutable once decoded; accessor methods type-check against
// the tag's kind and never mutate.
type Tag struct {
	kind  Kind
	num   uint64 // scalar payloads (integer and float bit patterns)
	str   string
	raw   []byte
	ints  []int32
	longs []int64
	elem  Kind // list element kind
	list  []Tag
	comp  *compound
}

// compound stores entries in wire order with an index for name lookup.
type compound struct {
	names  []string
	values []Tag
	index  map[string]int
}

func (c *compound) add(name string, value Tag) error {
	if _, ok := c.index[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	if c.index == nil {
		c.index = make(map[string]int)
	}
	c.index[name] = len(c.names)
	c.names = append(c.names, name)
	c.values = append(c.values, value)
	return nil
}

// Kind returns the tag's kind.
func (t Tag) Kind() Kind {
	return t.kind
}

// Byte returns the payload of a Byte tag.
func (t Tag) Byte() (int8, error) {
	if t.kind != TagByte {
		return 0, kindError(TagByte, t.kind)
	}
	return int8(t.num), nil
}

// Short returns the payload of a Short tag.
func (t Tag) Short() (int16, error) {
	if t.kind != TagShort {
		return 0, kindError(TagShort, t.kind)
	}
	return int16(t.num), nil
}

// Int returns the payload of an Int tag.
func (t Tag) Int() (int32, error) {
	if t.kind != TagInt {
		return 0, kindError(TagInt, t.kind)
	}
	return int32(t.num), nil
}

// Long returns the payload of a Long tag.
func (t Tag) Long() (int64, error) {
	if t.kind != TagLong {
		return 0, kindError(TagLong, t.kind)
	}
	return int64(t.num), nil
}

// Float returns the payload of a Float tag.
func (t Tag) Float() (float32, error) {
	if t.kind != TagFloat {
		return 0, kindError(TagFloat, t.kind)
	}
	return math.Float32frombits(uint32(t.num)), nil
}

// Double returns the payload of a Double tag.
func (t Tag) Double() (float64, error) {
	if t.kind != TagDouble {
		return 0, kindError(TagDouble, t.kind)
	}
	return math.Float64frombits(t.num), nil
}

// Text returns the payload of a String tag.
func (t Tag) Text() (string, error) {
	if t.kind != TagString {
		return "", kindError(TagString, t.kind)
	}
	return t.str, nil
}

// Bytes returns the payload of a ByteArray tag. The returned slice is
// owned by the tag and must be treated as immutable.
func (t Tag) Bytes() ([]byte, error) {
	if t.kind != TagByteArray {
		return nil, kindError(TagByteArray, t.kind)
	}
	return t.raw, nil
}

// Ints returns the payload of an IntArray tag. The returned slice is
// owned by the tag and must be treated as immutable.
func (t Tag) Ints() ([]int32, error) {
	if t.kind != TagIntArray {
		return nil, kindError(TagIntArray, t.kind)
	}
	return t.ints, nil
}

// Longs returns the payload of a LongArray tag. The returned slice is
// owned by the tag and must be treated as immutable.
func (t Tag) Longs() ([]int64, error) {
	if t.kind != TagLongArray {
		return nil, kindError(TagLongArray, t.kind)
	}
	return t.longs, nil
}

// Len returns the element count of a List, the entry count of a
// Compound, or the length of an array payload. It returns 0 for
// scalar tags.
func (t Tag) Len() int {
	switch t.kind {
	case TagList:
		return len(t.list)
	case TagCompound:
		if t.comp == nil {
			return 0
		}
		return len(t.comp.names)
	case TagByteArray:
		return len(t.raw)
	case TagIntArray:
		return len(t.ints)
	case TagLongArray:
		return len(t.longs)
	default:
		return 0
	}
}

// ListKind returns the declared element kind of a List tag.
func (t Tag) ListKind() (Kind, error) {
	if t.kind != TagList {
		return TagEnd, kindError(TagList, t.kind)
	}
	return t.elem, nil
}

// At returns the i-th element of a List tag.
func (t Tag) At(i int) (Tag, error) {
	if t.kind != TagList {
		return Tag{}, kindError(TagList, t.kind)
	}
	if i < 0 || i >= len(t.list) {
		return Tag{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(t.list))
	}
	return t.list[i], nil
}

// Get returns the child with the given name from a Compound tag.
// ok is false when t is not a compound or the name is absent.
func (t Tag) Get(name string) (Tag, bool) {
	if t.kind != TagCompound || t.comp == nil {
		return Tag{}, false
	}
	i, ok := t.comp.index[name]
	if !ok {
		return Tag{}, false
	}
	return t.comp.values[i], true
}

// GetByte returns the named Byte child of a compound.
func (t Tag) GetByte(name string) (int8, error) {
	child, err := t.child(name)
	if err != nil {
		return 0, err
	}
	return child.Byte()
}

// GetInt returns the named Int child of a compound.
func (t Tag) GetInt(name string) (int32, error) {
	child, err := t.child(name)
	if err != nil {
		return 0, err
	}
	return child.Int()
}

// GetLong returns the named Long child of a compound.
func (t Tag) GetLong(name string) (int64, error) {
	child, err := t.child(name)
	if err != nil {
		return 0, err
	}
	return child.Long()
}

// GetString returns the named String child of a compound.
func (t Tag) GetString(name string) (string, error) {
	child, err := t.child(name)
	if err != nil {
		return "", err
	}
	return child.Text()
}

// GetList returns the named List child of a compound.
func (t Tag) GetList(name string) (Tag, error) {
	child, err := t.child(name)
	if err != nil {
		return Tag{}, err
	}
	if child.kind != TagList {
		return Tag{}, kindError(TagList, child.kind)
	}
	return child, nil
}

// GetCompound returns the named Compound child of a compound.
func (t Tag) GetCompound(name string) (Tag, error) {
	child, err := t.child(name)
	if err != nil {
		return Tag{}, err
	}
	if child.kind != TagCompound {
		return Tag{}, kindError(TagCompound, child.kind)
	}
	return child, nil
}

// GetLongs returns the named LongArray child of a compound.
func (t Tag) GetLongs(name string) ([]int64, error) {
	child, err := t.child(name)
	if err != nil {
		return nil, err
	}
	return child.Longs()
}

func (t Tag) child(name string) (Tag, error) {
	if t.kind != TagCompound {
		return Tag{}, kindError(TagCompound, t.kind)
	}
	child, ok := t.Get(name)
	if !ok {
		return Tag{}, fmt.Errorf("%w: %q", ErrTagNotFound, name)
	}
	return child, nil
}

// Lookup resolves a slash-separated path of compound names, for example
// "Data/Player/Pos". ok is false when any component is missing or the
// intermediate tags are not compounds.
func (t Tag) Lookup(path string) (Tag, bool) {
	current := t
	for part := range strings.SplitSeq(path, "/") {
		child, ok := current.Get(part)
		if !ok {
			return Tag{}, false
		}
		current = child
	}
	return current, true
}

// All iterates the entries of a Compound tag in wire order. It yields
// nothing for other kinds.
func (t Tag) All() iter.Seq2[string, Tag] {
	return func(yield func(string, Tag) bool) {
		if t.kind != TagCompound || t.comp == nil {
			return
		}
		for i, name := range t.comp.names {
			if !yield(name, t.comp.values[i]) {
				return
			}
		}
	}
}

// Elems iterates the elements of a List tag in order. It yields
// nothing for other kinds.
func (t Tag) Elems() iter.Seq[Tag] {
	return func(yield func(Tag) bool) {
		for _, elem := range t.list {
			if !yield(elem) {
				return
			}
		}
	}
}

func kindError(want, got Kind) error {
	return fmt.Errorf("%w: want %s, got %s", ErrTagType, want, got)
}
