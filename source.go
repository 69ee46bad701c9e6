package anvil

import (
	"fmt"
	"io"
	"os"
)

// ByteSource provides random access to region file bytes. The core
// makes no assumption about whether reads are memory-mapped or
// buffered; any seek+read source works.
//
// Implementations must be safe for concurrent ReadAt calls, which the
// parallel scan relies on. *os.File satisfies this.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// fileSource wraps *os.File to implement ByteSource.
// os.File has ReadAt but not Size, so the size is cached at open time.
type fileSource struct {
	file *os.File
	size int64
}

func newFileSource(f *os.File) (*fileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat region file: %w", err)
	}
	return &fileSource{file: f, size: info.Size()}, nil
}

// ReadAt implements io.ReaderAt.
func (fs *fileSource) ReadAt(p []byte, off int64) (int, error) {
	return fs.file.ReadAt(p, off)
}

// Size returns the total size of the file.
func (fs *fileSource) Size() int64 {
	return fs.size
}

func (fs *fileSource) Close() error {
	return fs.file.Close()
}

// bytesSource serves an in-memory region image.
type bytesSource struct {
	data []byte
}

// NewBytesSource returns a ByteSource backed by data. Callers must not
// modify data while the source is in use.
func NewBytesSource(data []byte) ByteSource {
	return &bytesSource{data: data}
}

// ReadAt implements io.ReaderAt.
func (bs *bytesSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("anvil: read at %d: negative offset", off)
	}
	if off >= int64(len(bs.data)) {
		return 0, io.EOF
	}
	n := copy(p, bs.data[off:])
	if off+int64(n) >= int64(len(bs.data)) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (bs *bytesSource) Size() int64 {
	return int64(len(bs.data))
}
