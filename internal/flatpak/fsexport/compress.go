package fsexport

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression names the codec applied to the rewritten archive.
type Compression string

const (
	Gzip Compression = "gzip"
	Zstd Compression = "zstd"
	Xz   Compression = "xz"
)

// ParseCompression accepts gzip, zstd or xz; empty selects gzip.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return Gzip, nil
	case Gzip, Zstd, Xz:
		return c, nil
	default:
		return "", fmt.Errorf("unsupported compression %q (expected gzip|zstd|xz)", s)
	}
}

// Extension is the file suffix for archives compressed with c.
func (c Compression) Extension() string {
	switch c {
	case Zstd:
		return ".tar.zst"
	case Xz:
		return ".tar.xz"
	default:
		return ".tar.gz"
	}
}

// NewCompressor wraps w with the codec. level 0 keeps the codec default.
// Closing the returned writer flushes the codec but does not close w.
func NewCompressor(w io.Writer, c Compression, level int) (io.WriteCloser, error) {
	switch c {
	case Zstd:
		opts := []zstd.EOption{}
		if level != 0 {
			opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		}
		return zstd.NewWriter(w, opts...)
	case Xz:
		return xz.NewWriter(w)
	case Gzip, "":
		if level == 0 {
			level = gzip.DefaultCompression
		}
		return gzip.NewWriterLevel(w, level)
	default:
		return nil, fmt.Errorf("unsupported compression %q", c)
	}
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// DetectCompression reports the codec of a stream from its leading bytes,
// or "" for an uncompressed stream.
func DetectCompression(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return Gzip
	case bytes.HasPrefix(head, zstdMagic):
		return Zstd
	case bytes.HasPrefix(head, xzMagic):
		return Xz
	default:
		return ""
	}
}

// OpenSource returns a reader of the raw tar stream in r, transparently
// decompressing gzip, zstd and xz exports.
func OpenSource(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	head, err := br.Peek(len(xzMagic))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("%w: peeking source header: %w", ErrStreamIO, err)
	}

	switch DetectCompression(head) {
	case Gzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: opening gzip source: %w", ErrStreamIO, err)
		}
		return zr, nil
	case Zstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: opening zstd source: %w", ErrStreamIO, err)
		}
		return zr.IOReadCloser(), nil
	case Xz:
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: opening xz source: %w", ErrStreamIO, err)
		}
		return io.NopCloser(xr), nil
	default:
		return io.NopCloser(br), nil
	}
}
