package anvil

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"
)

// Scheme identifies the compression algorithm of a chunk payload.
// Values are protocol constants stored in chunk headers (1 byte each);
// changing them breaks container format compatibility.
type Scheme uint8

const (
	// SchemeGzip is RFC 1952 framing. Rarely written in practice but
	// part of the format.
	SchemeGzip Scheme = 1

	// SchemeZlib is RFC 1950 framing. The common case.
	SchemeZlib Scheme = 2

	// SchemeNone stores the payload uncompressed.
	SchemeNone Scheme = 3

	// SchemeLZ4 is LZ4 frame format.
	SchemeLZ4 Scheme = 4

	// externalFlag on the scheme byte marks a chunk whose payload is a
	// reference to a separate file rather than inline data.
	externalFlag = 0x80
)

// String returns the human-readable name of the scheme.
func (s Scheme) String() string {
	switch s {
	case SchemeGzip:
		return "gzip"
	case SchemeZlib:
		return "zlib"
	case SchemeNone:
		return "none"
	case SchemeLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

func (s Scheme) valid() bool {
	return s >= SchemeGzip && s <= SchemeLZ4
}

// Decompress applies the inverse transform for the given scheme. For
// SchemeNone the input is returned unchanged (no copy). A malformed
// stream returns an error wrapping ErrDecompression, never a panic:
// corrupt chunks are expected in the wild.
func Decompress(scheme Scheme, data []byte) ([]byte, error) {
	return decompressLimit(scheme, data, 0)
}

// decompressLimit is Decompress with an optional bound on the
// decompressed size (0 = unbounded). The bound protects against
// decompression bombs in corrupt or hostile files.
func decompressLimit(scheme Scheme, data []byte, limit uint64) ([]byte, error) {
	var reader io.Reader
	switch scheme {
	case SchemeNone:
		if limit > 0 && uint64(len(data)) > limit {
			return nil, fmt.Errorf("%w: %d bytes", ErrChunkTooLarge, len(data))
		}
		return data, nil

	case SchemeGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", ErrDecompression, err)
		}
		defer r.Close()
		reader = r

	case SchemeZlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: zlib: %v", ErrDecompression, err)
		}
		defer r.Close()
		reader = r

	case SchemeLZ4:
		reader = lz4.NewReader(bytes.NewReader(data))

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownScheme, uint8(scheme))
	}

	return readAllLimit(reader, scheme, limit)
}

func readAllLimit(r io.Reader, scheme Scheme, limit uint64) ([]byte, error) {
	if limit > 0 {
		r = io.LimitReader(r, int64(limit)+1)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecompression, scheme, err)
	}
	if limit > 0 && uint64(len(out)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrChunkTooLarge, limit)
	}
	return out, nil
}
