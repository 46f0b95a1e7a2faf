// Package fsexport rewrites the filesystem export of a built container into
// the tree layout and ownership flatpak expects, in a single streaming pass.
package fsexport

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/open-edge-platform/flatpak-composer/internal/flatpak"
	"github.com/open-edge-platform/flatpak-composer/internal/flatpak/pathmap"
	"github.com/open-edge-platform/flatpak-composer/internal/utils/logger"
)

var (
	// ErrStreamIO reports a failure reading or decoding the source archive.
	ErrStreamIO = errors.New("source stream failure")
	// ErrSinkWrite reports a failure writing the rewritten archive.
	ErrSinkWrite = errors.New("archive write failure")
	// ErrSinkFlush reports a failure finishing the rewritten archive.
	ErrSinkFlush = errors.New("archive flush failure")
)

const blockSize = 512

// Decision is the fate of one source entry.
type Decision int

const (
	Keep Decision = iota
	DropUnmapped
	DropHardlink
)

// Stats summarizes one rewrite pass.
type Stats struct {
	Entries          int
	Written          int
	Dropped          int
	HardlinksDropped int
	PayloadBytes     int64
	ManifestFound    bool
}

// normalizeMode matches the ownership/permission changes done by
// 'flatpak build-export' (commit_filter).
func normalizeMode(hdr *tar.Header) int64 {
	if hdr.Typeflag == tar.TypeDir {
		return 0o755
	}
	if hdr.Mode&0o100 != 0 {
		return 0o755
	}
	return 0o644
}

// entryName strips the trailing separator archive writers put on directories.
func entryName(name string) string {
	if len(name) > 1 {
		return strings.TrimSuffix(name, "/")
	}
	return name
}

// entryEnd returns the source offset just past the block-padded payload of
// an entry whose payload starts at start.
func entryEnd(start int64, hdr *tar.Header) int64 {
	size := hdr.Size
	switch hdr.Typeflag {
	case tar.TypeLink, tar.TypeSymlink, tar.TypeChar, tar.TypeBlock, tar.TypeDir, tar.TypeFifo:
		size = 0
	}
	return start + (size+blockSize-1)/blockSize*blockSize
}

// RewriteHeader maps one source header to its rewritten form. The returned
// header is nil unless the decision is Keep. hdr is not modified.
func RewriteHeader(hdr *tar.Header, m *pathmap.Matcher) (*tar.Header, Decision) {
	target, ok := m.Target(entryName(hdr.Name))
	if !ok {
		return nil, DropUnmapped
	}

	out := &tar.Header{
		Typeflag: hdr.Typeflag,
		Name:     target,
		Linkname: hdr.Linkname,
		Size:     hdr.Size,
		Mode:     normalizeMode(hdr),
		Uid:      0,
		Gid:      0,
		Uname:    "root",
		Gname:    "root",
		ModTime:  hdr.ModTime,
		Devmajor: hdr.Devmajor,
		Devminor: hdr.Devminor,
	}

	switch hdr.Typeflag {
	case tar.TypeLink:
		// Hard links carry the full in-archive path of their target.
		linkTarget, ok := m.Target(entryName(hdr.Linkname))
		if !ok {
			return nil, DropHardlink
		}
		out.Linkname = linkTarget
		out.Size = 0
	case tar.TypeSymlink:
		// Symlink targets are relative to the chroot and stay valid.
		out.Size = 0
	case tar.TypeDir:
		out.Name = target + "/"
		out.Size = 0
	case tar.TypeReg:
		// payload is streamed by the caller
	default:
		out.Size = 0
	}
	return out, Keep
}

// Rewrite reads the tar stream src entry by entry, writes the entries kept by
// m to dst as a tar stream and closes the tar writer. The payload of the
// package manifest entry is copied to manifest when it is non-nil. dst
// itself is not closed. A source that ends without its end-of-archive
// marker is reported as ErrStreamIO.
func Rewrite(src io.Reader, m *pathmap.Matcher, dst io.Writer, manifest io.Writer) (Stats, error) {
	log := logger.Logger()
	var stats Stats

	cr := &countingReader{r: src}
	tr := tar.NewReader(cr)
	tw := tar.NewWriter(dst)
	var msink *sinkWriter
	if manifest != nil {
		msink = &sinkWriter{w: manifest}
	}

	// end is where the end-of-archive marker must start.
	var end int64
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			if cr.n != end+2*blockSize {
				return stats, fmt.Errorf("%w: archive truncated after %d bytes, end-of-archive marker missing",
					ErrStreamIO, cr.n)
			}
			break
		}
		if err != nil {
			return stats, fmt.Errorf("%w: reading entry %d: %w", ErrStreamIO, stats.Entries+1, err)
		}
		end = entryEnd(cr.n, hdr)
		stats.Entries++

		isManifest := manifest != nil && hdr.Name == flatpak.ManifestEntry
		if isManifest {
			stats.ManifestFound = true
		}

		out, decision := RewriteHeader(hdr, m)
		switch decision {
		case DropUnmapped:
			stats.Dropped++
			if isManifest {
				if _, err := io.Copy(msink, tr); err != nil {
					kind := ErrStreamIO
					if msink.err != nil {
						kind = ErrSinkWrite
					}
					return stats, fmt.Errorf("%w: copying %s: %w", kind, hdr.Name, err)
				}
			}
			continue
		case DropHardlink:
			stats.Dropped++
			stats.HardlinksDropped++
			log.Debugf("skipping %s, hard link to excluded %s", hdr.Name, hdr.Linkname)
			continue
		}

		if err := tw.WriteHeader(out); err != nil {
			return stats, fmt.Errorf("%w: writing header for %s: %w", ErrSinkWrite, out.Name, err)
		}
		if out.Size > 0 {
			var payload io.Reader = tr
			if isManifest {
				payload = io.TeeReader(tr, msink)
			}
			sink := &sinkWriter{w: tw}
			n, err := io.Copy(sink, payload)
			stats.PayloadBytes += n
			if err != nil {
				kind := ErrStreamIO
				if sink.err != nil || (isManifest && msink.err != nil) {
					kind = ErrSinkWrite
				}
				return stats, fmt.Errorf("%w: copying payload of %s: %w", kind, hdr.Name, err)
			}
		}
		stats.Written++
	}

	if err := tw.Close(); err != nil {
		return stats, fmt.Errorf("%w: %w", ErrSinkFlush, err)
	}
	return stats, nil
}

// countingReader counts the bytes the tar reader consumed from the source.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// sinkWriter remembers write errors so a failed copy can be attributed to
// the destination rather than the source.
type sinkWriter struct {
	w   io.Writer
	err error
}

func (s *sinkWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		s.err = err
	}
	return n, err
}
