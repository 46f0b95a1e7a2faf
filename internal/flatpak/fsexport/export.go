package fsexport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/open-edge-platform/flatpak-composer/internal/flatpak/pathmap"
	"github.com/open-edge-platform/flatpak-composer/internal/utils/logger"
	"github.com/schollz/progressbar/v3"
)

// Options controls how the rewritten archive is produced.
type Options struct {
	Compression      Compression
	CompressionLevel int
	// Progress shows a byte counter for the source stream on stderr.
	Progress bool
}

// Result locates the artifacts of ExportFilesystem.
type Result struct {
	ArchivePath string
	// ManifestPath is empty when the export carried no package manifest.
	ManifestPath string
	Stats        Stats
}

// ExportFilesystem rewrites the container export src into a compressed
// archive at archivePath and extracts the package manifest to manifestPath.
// Compression runs concurrently with the rewrite, connected by a pipe. On
// any failure both output files are removed.
func ExportFilesystem(src io.Reader, m *pathmap.Matcher, archivePath, manifestPath string, opts Options) (res *Result, err error) {
	log := logger.Logger()

	out, err := os.Create(archivePath)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", archivePath, err)
	}
	manifest, err := os.Create(manifestPath)
	if err != nil {
		out.Close()
		os.Remove(archivePath)
		return nil, fmt.Errorf("creating %s: %w", manifestPath, err)
	}
	defer func() {
		if cerr := manifest.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", manifestPath, cerr)
		}
		if err != nil {
			os.Remove(archivePath)
			os.Remove(manifestPath)
			res = nil
			return
		}
		if !res.Stats.ManifestFound {
			os.Remove(manifestPath)
			res.ManifestPath = ""
		}
	}()

	if opts.Progress {
		bar := progressbar.NewOptions64(-1,
			progressbar.OptionSetDescription("exporting filesystem"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
		defer bar.Finish()
		src = io.TeeReader(src, bar)
	}

	source, err := OpenSource(src)
	if err != nil {
		out.Close()
		return nil, err
	}
	defer source.Close()

	start := time.Now()
	stats, err := compressPipeline(out, opts, func(w io.Writer) (Stats, error) {
		return Rewrite(source, m, w, manifest)
	})
	if cerr := out.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("%w: closing %s: %w", ErrSinkFlush, archivePath, cerr)
	}
	if err != nil {
		return nil, fmt.Errorf("rewriting filesystem export: %w", err)
	}

	log.Infof("rewrote %d of %d entries (%d dropped, %d hard links dropped) in %s",
		stats.Written, stats.Entries, stats.Dropped, stats.HardlinksDropped, time.Since(start))

	return &Result{ArchivePath: archivePath, ManifestPath: manifestPath, Stats: stats}, nil
}

// compressPipeline runs produce against the write end of a pipe while a
// second goroutine compresses the read end into out. Both pipe ends are
// closed on every path and the compressor's error is surfaced.
func compressPipeline(out io.Writer, opts Options, produce func(io.Writer) (Stats, error)) (Stats, error) {
	pr, pw := io.Pipe()
	done := make(chan error, 1)

	go func() {
		err := compressInto(out, pr, opts)
		// Unblock the producer if the compressor gave up early.
		pr.CloseWithError(errOrClosed(err))
		done <- err
	}()

	stats, err := produce(pw)
	pw.CloseWithError(err)
	cerr := <-done

	if err != nil {
		return stats, err
	}
	if cerr != nil {
		return stats, fmt.Errorf("%w: compressing archive: %w", ErrSinkFlush, cerr)
	}
	return stats, nil
}

func compressInto(out io.Writer, in io.Reader, opts Options) error {
	cw, err := NewCompressor(out, opts.Compression, opts.CompressionLevel)
	if err != nil {
		return err
	}
	if _, err := io.Copy(cw, in); err != nil {
		cw.Close()
		return err
	}
	return cw.Close()
}

var errCompressorClosed = errors.New("compressor closed")

func errOrClosed(err error) error {
	if err != nil {
		return err
	}
	return errCompressorClosed
}
