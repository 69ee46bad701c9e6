// Package testutil builds synthetic region files and tag payloads for
// tests. Fixtures are assembled byte-for-byte, so tests can corrupt
// specific fields without round-tripping through an encoder.
package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"

	"github.com/meigma/anvil/nbt"
)

// Compression scheme bytes as stored in chunk headers.
const (
	SchemeGzip byte = 1
	SchemeZlib byte = 2
	SchemeNone byte = 3
	SchemeLZ4  byte = 4

	// ExternalFlag marks a chunk whose payload lives in a separate file.
	ExternalFlag byte = 0x80

	sectorSize = 4096
)

// Source is an in-memory random-access byte source for tests.
type Source struct {
	data []byte
}

// NewSource returns a source backed by the provided data.
func NewSource(data []byte) *Source {
	return &Source{data: data}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("testutil: read at %d: negative offset", off)
	}
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if off+int64(n) >= int64(len(s.data)) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (s *Source) Size() int64 {
	return int64(len(s.data))
}

// Bytes returns the backing slice for tests that need to corrupt data.
func (s *Source) Bytes() []byte {
	return s.data
}

// Field is one named entry of a compound fixture, encoded in order.
type Field struct {
	Name  string
	Value any
}

// Compound is an ordered compound fixture value.
type Compound []Field

// List is a list fixture value with an explicit element kind. Items
// must all encode to that kind; the encoder trusts the caller.
type List struct {
	Elem  nbt.Kind
	Items []any
}

// EncodeRoot encodes a named root compound in wire format.
func EncodeRoot(name string, c Compound) []byte {
	b := []byte{byte(nbt.TagCompound)}
	b = appendString(b, name)
	return appendCompound(b, c)
}

func appendCompound(b []byte, c Compound) []byte {
	for _, f := range c {
		b = append(b, byte(kindOf(f.Value)))
		b = appendString(b, f.Name)
		b = appendValue(b, f.Value)
	}
	return append(b, byte(nbt.TagEnd))
}

func appendString(b []byte, s string) []byte {
	b = binary.BigEndian.AppendUint16(b, uint16(len(s)))
	return append(b, s...)
}

func appendValue(b []byte, v any) []byte {
	switch v := v.(type) {
	case int8:
		return append(b, byte(v))
	case int16:
		return binary.BigEndian.AppendUint16(b, uint16(v))
	case int32:
		return binary.BigEndian.AppendUint32(b, uint32(v))
	case int64:
		return binary.BigEndian.AppendUint64(b, uint64(v))
	case float32:
		return binary.BigEndian.AppendUint32(b, math.Float32bits(v))
	case float64:
		return binary.BigEndian.AppendUint64(b, math.Float64bits(v))
	case string:
		return appendString(b, v)
	case []byte:
		b = binary.BigEndian.AppendUint32(b, uint32(len(v)))
		return append(b, v...)
	case []int32:
		b = binary.BigEndian.AppendUint32(b, uint32(len(v)))
		for _, n := range v {
			b = binary.BigEndian.AppendUint32(b, uint32(n))
		}
		return b
	case []int64:
		b = binary.BigEndian.AppendUint32(b, uint32(len(v)))
		for _, n := range v {
			b = binary.BigEndian.AppendUint64(b, uint64(n))
		}
		return b
	case List:
		b = append(b, byte(v.Elem))
		b = binary.BigEndian.AppendUint32(b, uint32(len(v.Items)))
		for _, item := range v.Items {
			b = appendValue(b, item)
		}
		return b
	case Compound:
		return appendCompound(b, v)
	default:
		panic(fmt.Sprintf("testutil: unsupported fixture value %T", v))
	}
}

func kindOf(v any) nbt.Kind {
	switch v.(type) {
	case int8:
		return nbt.TagByte
	case int16:
		return nbt.TagShort
	case int32:
		return nbt.TagInt
	case int64:
		return nbt.TagLong
	case float32:
		return nbt.TagFloat
	case float64:
		return nbt.TagDouble
	case string:
		return nbt.TagString
	case []byte:
		return nbt.TagByteArray
	case []int32:
		return nbt.TagIntArray
	case []int64:
		return nbt.TagLongArray
	case List:
		return nbt.TagList
	case Compound:
		return nbt.TagCompound
	default:
		panic(fmt.Sprintf("testutil: unsupported fixture value %T", v))
	}
}

// NestedCompound builds a compound nested to the given depth, for
// exercising decoder depth limits.
func NestedCompound(depth int) Compound {
	c := Compound{{Name: "leaf", Value: int8(1)}}
	for range depth {
		c = Compound{{Name: "child", Value: c}}
	}
	return c
}

// CompressZlib deflates data with zlib framing.
func CompressZlib(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		panic(err)
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// CompressGzip deflates data with gzip framing.
func CompressGzip(data []byte) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		panic(err)
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// CompressLZ4 wraps data in an LZ4 frame.
func CompressLZ4(data []byte) []byte {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		panic(err)
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Compress applies the framing for the given scheme byte.
func Compress(scheme byte, data []byte) []byte {
	switch scheme {
	case SchemeGzip:
		return CompressGzip(data)
	case SchemeZlib:
		return CompressZlib(data)
	case SchemeNone:
		return data
	case SchemeLZ4:
		return CompressLZ4(data)
	default:
		panic(fmt.Sprintf("testutil: unsupported scheme %d", scheme))
	}
}

// builtChunk is one slot's pending data for RegionBuilder.
type builtChunk struct {
	body      []byte // length + scheme + payload, unpadded
	sectors   int    // 0 = derive from body
	timestamp uint32
}

// RegionBuilder assembles a region file image: 8 KiB header followed
// by sector-aligned chunk records in insertion order.
type RegionBuilder struct {
	order  [][2]int
	chunks map[[2]int]builtChunk
	// location overrides applied after layout, keyed by slot.
	locOverride map[[2]int]uint32
}

// NewRegionBuilder returns an empty builder. Slots without chunks get
// the all-zero "not generated" location entry.
func NewRegionBuilder() *RegionBuilder {
	return &RegionBuilder{
		chunks:      make(map[[2]int]builtChunk),
		locOverride: make(map[[2]int]uint32),
	}
}

// Add compresses payload with the given scheme and stores it at (x, z).
func (b *RegionBuilder) Add(x, z int, scheme byte, payload []byte) *RegionBuilder {
	compressed := Compress(scheme, payload)
	return b.AddRaw(x, z, scheme, compressed)
}

// AddRaw stores an already-compressed payload at (x, z) with the given
// scheme byte, bypassing the compressor. Useful for corrupt fixtures.
func (b *RegionBuilder) AddRaw(x, z int, scheme byte, compressed []byte) *RegionBuilder {
	body := binary.BigEndian.AppendUint32(nil, uint32(len(compressed)+1))
	body = append(body, scheme)
	body = append(body, compressed...)
	b.put(x, z, builtChunk{body: body, timestamp: uint32(1700000000 + x + z*32)})
	return b
}

// SetTimestamp overrides the header timestamp for (x, z).
func (b *RegionBuilder) SetTimestamp(x, z int, ts uint32) *RegionBuilder {
	c := b.chunks[[2]int{x, z}]
	c.timestamp = ts
	b.put(x, z, c)
	return b
}

// SetSectorCount forces the header sector count for (x, z) regardless
// of the actual body size.
func (b *RegionBuilder) SetSectorCount(x, z, sectors int) *RegionBuilder {
	c := b.chunks[[2]int{x, z}]
	c.sectors = sectors
	b.put(x, z, c)
	return b
}

// SetLocation writes a raw location entry for (x, z) without storing
// any chunk data. Used for inconsistent-header fixtures.
func (b *RegionBuilder) SetLocation(x, z int, offset uint32, sectors uint8) *RegionBuilder {
	b.locOverride[[2]int{x, z}] = offset<<8 | uint32(sectors)
	return b
}

func (b *RegionBuilder) put(x, z int, c builtChunk) {
	key := [2]int{x, z}
	if _, ok := b.chunks[key]; !ok {
		b.order = append(b.order, key)
	}
	b.chunks[key] = c
}

// Build lays out the region image. Chunk data starts at sector 2 and
// every record is padded to a sector boundary.
func (b *RegionBuilder) Build() []byte {
	header := make([]byte, 2*sectorSize)
	var data []byte

	sector := uint32(2)
	for _, key := range b.order {
		c := b.chunks[key]
		sectors := c.sectors
		if sectors == 0 {
			sectors = (len(c.body) + sectorSize - 1) / sectorSize
		}

		idx := key[0] + key[1]*32
		binary.BigEndian.PutUint32(header[idx*4:], sector<<8|uint32(sectors&0xff))
		binary.BigEndian.PutUint32(header[sectorSize+idx*4:], c.timestamp)

		padded := make([]byte, sectors*sectorSize)
		copy(padded, c.body)
		data = append(data, padded...)
		sector += uint32(sectors)
	}

	for key, entry := range b.locOverride {
		idx := key[0] + key[1]*32
		binary.BigEndian.PutUint32(header[idx*4:], entry)
	}

	return append(header, data...)
}

// BuildSource is shorthand for NewSource(Build()).
func (b *RegionBuilder) BuildSource() *Source {
	return NewSource(b.Build())
}
