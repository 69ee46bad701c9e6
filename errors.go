package anvil

import "errors"

// Sentinel errors for the container layer. All are recoverable values
// scoped to a single header or chunk; none invalidates the Region or
// any other chunk.
var (
	// ErrTruncatedHeader is returned when the source holds fewer than
	// the 8192 header bytes.
	ErrTruncatedHeader = errors.New("anvil: truncated region header")

	// ErrOutOfRange is returned for chunk coordinates outside 0..31.
	ErrOutOfRange = errors.New("anvil: chunk coordinates out of range")

	// ErrInvalidOffset is returned when a location entry points outside
	// the source, into the header, or is internally inconsistent
	// (zero offset with a nonzero sector count).
	ErrInvalidOffset = errors.New("anvil: invalid chunk offset")

	// ErrTruncatedChunk is returned when a chunk record ends before its
	// declared length or overruns its sector allocation.
	ErrTruncatedChunk = errors.New("anvil: truncated chunk record")

	// ErrUnknownScheme is returned for a compression scheme byte
	// outside the closed enumeration.
	ErrUnknownScheme = errors.New("anvil: unknown compression scheme")

	// ErrExternalChunk is returned when decoding a chunk whose payload
	// is stored in a separate file. Resolving the external file is a
	// filesystem concern outside this package.
	ErrExternalChunk = errors.New("anvil: chunk payload is external")

	// ErrDecompression is returned when a chunk's compressed stream is
	// malformed (bad checksum, truncated stream, invalid codes).
	ErrDecompression = errors.New("anvil: decompression failed")

	// ErrChunkTooLarge is returned when a chunk decompresses to more
	// than the configured size limit.
	ErrChunkTooLarge = errors.New("anvil: decoded chunk exceeds size limit")
)
