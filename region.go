package anvil

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

const (
	// SectorSize is the fixed allocation unit for chunk records.
	SectorSize = 4096

	// GridSize is the chunk grid dimension; a region holds up to
	// GridSize*GridSize chunks.
	GridSize = 32

	headerSize = 2 * SectorSize
	slotCount  = GridSize * GridSize

	// DefaultMaxDecodedSize bounds the decompressed size of one chunk
	// (16 MiB). Legitimate chunks are far smaller; the bound only
	// exists to stop decompression bombs.
	DefaultMaxDecodedSize = 16 << 20
)

// location is one header table entry: a sector offset from the start
// of the file and the number of sectors allocated to the record.
type location struct {
	offset  uint32 // in sectors
	sectors uint8
}

// empty reports the "chunk not generated" sentinel. This is a legal
// terminal state, distinct from any error.
func (l location) empty() bool {
	return l.offset == 0 && l.sectors == 0
}

// Region provides lazy access to the chunks of one region file.
//
// The header is parsed once at open time; chunk extraction happens on
// demand and is idempotent. Methods are safe for concurrent use when
// the underlying ByteSource supports concurrent ReadAt.
type Region struct {
	source         ByteSource
	locations      [slotCount]location
	timestamps     [slotCount]uint32
	maxDecodedSize uint64
	logger         *slog.Logger
	closer         io.Closer
}

// Option configures a Region.
type Option func(*Region)

// WithMaxDecodedSize limits the decompressed size of a single chunk.
// Set limit to 0 to disable the limit.
func WithMaxDecodedSize(limit uint64) Option {
	return func(r *Region) {
		r.maxDecodedSize = limit
	}
}

// WithLogger sets the logger for container operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Region) {
		r.logger = logger
	}
}

// log returns the logger, falling back to a discard logger if nil.
func (r *Region) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// Open parses the region header from source.
//
// Exactly 8192 bytes are read; a shorter source fails with
// ErrTruncatedHeader. Chunk records are not touched until requested.
func Open(source ByteSource, opts ...Option) (*Region, error) {
	r := &Region{
		source:         source,
		maxDecodedSize: DefaultMaxDecodedSize,
	}
	for _, opt := range opts {
		opt(r)
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(io.NewSectionReader(source, 0, headerSize), header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncatedHeader
		}
		return nil, fmt.Errorf("anvil: read header: %w", err)
	}

	for i := range slotCount {
		entry := binary.BigEndian.Uint32(header[i*4:])
		r.locations[i] = location{offset: entry >> 8, sectors: uint8(entry)}
		r.timestamps[i] = binary.BigEndian.Uint32(header[SectorSize+i*4:])
	}

	// Writers pad region files to whole sectors. An unpadded length is
	// usually a crashed writer; per-chunk validation catches any record
	// that is actually unreadable, so this is only worth a warning.
	if size := source.Size(); size%SectorSize != 0 {
		r.log().Warn("region file length is not sector aligned", "size", size)
	}

	return r, nil
}

// OpenFile opens the region file at path. Closing the returned Region
// closes the file.
func OpenFile(path string, opts ...Option) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("anvil: %w", err)
	}
	source, err := newFileSource(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("anvil: %w", err)
	}
	r, err := Open(source, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = source
	return r, nil
}

// Close releases the underlying file when the Region was opened with
// OpenFile. It is a no-op for caller-provided sources.
func (r *Region) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// slot converts local chunk coordinates to a header index.
func slot(x, z int) (int, error) {
	if x < 0 || x >= GridSize || z < 0 || z >= GridSize {
		return 0, fmt.Errorf("%w: (%d, %d)", ErrOutOfRange, x, z)
	}
	return x + z*GridSize, nil
}

// Chunk extracts the raw record for local chunk coordinates (x, z),
// each in 0..31.
//
// It returns (nil, nil) when the chunk has not been generated; callers
// must not conflate this with an error. The returned RawChunk owns its
// payload and stays valid after the Region is closed.
func (r *Region) Chunk(x, z int) (*RawChunk, error) {
	i, err := slot(x, z)
	if err != nil {
		return nil, err
	}
	loc := r.locations[i]
	if loc.empty() {
		return nil, nil
	}
	chunk, err := extractChunk(r.source, loc, r.maxDecodedSize)
	if err != nil {
		r.log().Debug("chunk extraction failed", "x", x, "z", z, "err", err)
		return nil, err
	}
	chunk.X, chunk.Z = x, z
	return chunk, nil
}

// Timestamp returns the stored modification time for (x, z) as Unix
// epoch seconds, with the same coordinate contract as Chunk.
func (r *Region) Timestamp(x, z int) (uint32, error) {
	i, err := slot(x, z)
	if err != nil {
		return 0, err
	}
	return r.timestamps[i], nil
}

// Generated reports whether the chunk at (x, z) has been generated,
// without reading its record.
func (r *Region) Generated(x, z int) (bool, error) {
	i, err := slot(x, z)
	if err != nil {
		return false, err
	}
	return !r.locations[i].empty(), nil
}
