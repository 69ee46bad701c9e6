package anvil

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/meigma/anvil/nbt"
)

// RawChunk is one extracted, still-compressed chunk record. It owns
// its payload and has no reference back to the Region it came from.
type RawChunk struct {
	// X, Z are the local chunk coordinates within the region grid.
	X, Z int

	// Scheme is the compression algorithm of Payload.
	Scheme Scheme

	// External marks a record whose payload is a reference to a
	// separate file instead of inline compressed data. Decode refuses
	// such records with ErrExternalChunk.
	External bool

	// Payload is the compressed chunk data (without the length and
	// scheme header bytes).
	Payload []byte

	maxDecodedSize uint64
}

// extractChunk reads the record addressed by loc from the source.
//
// Record layout: 4-byte big-endian length (counting the scheme byte),
// 1 scheme byte, length-1 payload bytes. The record must fit inside
// its sector allocation.
func extractChunk(source ByteSource, loc location, maxDecodedSize uint64) (*RawChunk, error) {
	if loc.offset == 0 {
		// A zero offset with a nonzero sector count is an inconsistent
		// sentinel: the slot claims data inside the header table.
		return nil, fmt.Errorf("%w: zero offset with %d sectors", ErrInvalidOffset, loc.sectors)
	}
	if loc.offset < headerSize/SectorSize {
		return nil, fmt.Errorf("%w: sector %d overlaps the header", ErrInvalidOffset, loc.offset)
	}

	start := int64(loc.offset) * SectorSize
	if start >= source.Size() {
		return nil, fmt.Errorf("%w: sector %d beyond end of file", ErrInvalidOffset, loc.offset)
	}

	var head [5]byte
	if _, err := io.ReadFull(io.NewSectionReader(source, start, int64(len(head))), head[:]); err != nil {
		return nil, truncated(err)
	}

	length := binary.BigEndian.Uint32(head[:4])
	if length == 0 {
		return nil, fmt.Errorf("%w: zero record length", ErrTruncatedChunk)
	}
	if uint64(length)+4 > uint64(loc.sectors)*SectorSize {
		return nil, fmt.Errorf("%w: record of %d bytes overruns %d allocated sectors",
			ErrTruncatedChunk, 4+length, loc.sectors)
	}

	schemeByte := head[4]
	external := schemeByte&externalFlag != 0
	scheme := Scheme(schemeByte &^ externalFlag)
	if !scheme.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownScheme, schemeByte)
	}

	payload := make([]byte, length-1)
	if _, err := io.ReadFull(io.NewSectionReader(source, start+5, int64(len(payload))), payload); err != nil {
		return nil, truncated(err)
	}

	return &RawChunk{
		Scheme:         scheme,
		External:       external,
		Payload:        payload,
		maxDecodedSize: maxDecodedSize,
	}, nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncatedChunk
	}
	return fmt.Errorf("anvil: read chunk record: %w", err)
}

// Decompress returns the chunk's decompressed payload bytes.
func (c *RawChunk) Decompress() ([]byte, error) {
	if c.External {
		return nil, fmt.Errorf("%w: scheme %s", ErrExternalChunk, c.Scheme)
	}
	return decompressLimit(c.Scheme, c.Payload, c.maxDecodedSize)
}

// Decode decompresses the payload and decodes it into a tag tree.
//
// Decoding is pure and idempotent: calling Decode twice yields
// structurally identical trees, and a failed decode leaves no state
// behind.
func (c *RawChunk) Decode() (nbt.Tag, error) {
	data, err := c.Decompress()
	if err != nil {
		return nbt.Tag{}, err
	}
	return nbt.Decode(data)
}
