package fsexport

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/open-edge-platform/flatpak-composer/internal/flatpak"
	"github.com/open-edge-platform/flatpak-composer/internal/flatpak/pathmap"
)

func runtimeExport(t *testing.T) *bytes.Buffer {
	t.Helper()
	return buildArchive(t, []testEntry{
		{typeflag: tar.TypeReg, name: flatpak.ManifestEntry, mode: 0o644, body: "bash;5.0;1;x86_64;(none);1;a;1;(none);(none)\n"},
		{typeflag: tar.TypeDir, name: "var/tmp/flatpak-build/", mode: 0o755},
		{typeflag: tar.TypeReg, name: "var/tmp/flatpak-build/usr/bin/foo", mode: 0o755, body: "foo"},
		{typeflag: tar.TypeReg, name: "var/tmp/flatpak-build/etc/bar.conf", mode: 0o644, body: "bar"},
	})
}

func TestExportFilesystemCompressions(t *testing.T) {
	for _, c := range []Compression{Gzip, Zstd, Xz} {
		t.Run(string(c), func(t *testing.T) {
			dir := t.TempDir()
			archive := filepath.Join(dir, "filesystem"+c.Extension())
			manifest := filepath.Join(dir, "flatpak-build.rpm_qf")

			res, err := ExportFilesystem(runtimeExport(t), pathmap.ForMode(flatpak.ModeRuntime), archive, manifest, Options{Compression: c})
			if err != nil {
				t.Fatalf("ExportFilesystem failed: %v", err)
			}
			if res.ManifestPath != manifest {
				t.Errorf("manifest path = %q", res.ManifestPath)
			}
			data, err := os.ReadFile(manifest)
			if err != nil || len(data) == 0 {
				t.Fatalf("manifest not written: %v", err)
			}

			f, err := os.Open(archive)
			if err != nil {
				t.Fatalf("opening archive: %v", err)
			}
			defer f.Close()

			head := make([]byte, 6)
			if _, err := io.ReadFull(f, head); err != nil {
				t.Fatalf("reading archive head: %v", err)
			}
			if got := DetectCompression(head); got != c {
				t.Errorf("archive compressed as %q, want %q", got, c)
			}
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				t.Fatal(err)
			}

			rc, err := OpenSource(f)
			if err != nil {
				t.Fatalf("OpenSource failed: %v", err)
			}
			defer rc.Close()
			entries := readArchive(t, rc)
			if len(entries) != 3 {
				t.Fatalf("expected 3 entries, got %d", len(entries))
			}
			if entries[0].hdr.Name != "files/" || entries[1].hdr.Name != "files/bin/foo" || entries[2].hdr.Name != "files/etc/bar.conf" {
				t.Errorf("unexpected entries: %s %s %s", entries[0].hdr.Name, entries[1].hdr.Name, entries[2].hdr.Name)
			}
		})
	}
}

func TestExportFilesystemCompressedSource(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	if _, err := io.Copy(zw, runtimeExport(t)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	res, err := ExportFilesystem(&gz, pathmap.ForMode(flatpak.ModeRuntime),
		filepath.Join(dir, "filesystem.tar.gz"), filepath.Join(dir, "manifest"), Options{})
	if err != nil {
		t.Fatalf("ExportFilesystem failed: %v", err)
	}
	if res.Stats.Written != 3 {
		t.Errorf("expected 3 written entries, got %d", res.Stats.Written)
	}
}

func TestExportFilesystemWithoutManifest(t *testing.T) {
	src := buildArchive(t, []testEntry{
		{typeflag: tar.TypeReg, name: "var/tmp/flatpak-build/app/bin/eog", mode: 0o755, body: "eog"},
	})
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest")

	res, err := ExportFilesystem(src, pathmap.ForMode(flatpak.ModeApplication), filepath.Join(dir, "fs.tar.gz"), manifest, Options{})
	if err != nil {
		t.Fatalf("ExportFilesystem failed: %v", err)
	}
	if res.ManifestPath != "" {
		t.Errorf("expected empty manifest path, got %q", res.ManifestPath)
	}
	if _, err := os.Stat(manifest); !os.IsNotExist(err) {
		t.Errorf("empty manifest file should be removed, stat err = %v", err)
	}
}

func TestExportFilesystemFailureRemovesOutputs(t *testing.T) {
	src := runtimeExport(t)
	truncated := bytes.NewReader(src.Bytes()[:700])

	dir := t.TempDir()
	archive := filepath.Join(dir, "filesystem.tar.gz")
	manifest := filepath.Join(dir, "manifest")

	res, err := ExportFilesystem(truncated, pathmap.ForMode(flatpak.ModeRuntime), archive, manifest, Options{})
	if err == nil {
		t.Fatal("expected failure on truncated source")
	}
	if res != nil {
		t.Errorf("expected nil result on failure")
	}
	if !errors.Is(err, ErrStreamIO) {
		t.Errorf("expected ErrStreamIO, got %v", err)
	}
	for _, p := range []string{archive, manifest} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should be removed after a failed export", p)
		}
	}
}

func TestCompressPipelineSurfacesCompressorError(t *testing.T) {
	_, err := compressPipeline(&failingWriter{after: 0}, Options{}, func(w io.Writer) (Stats, error) {
		_, err := w.Write(bytes.Repeat([]byte("x"), 1<<20))
		return Stats{}, err
	})
	if err == nil {
		t.Fatal("expected error when the compressor cannot write")
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in      string
		want    Compression
		wantErr bool
	}{
		{"", Gzip, false},
		{"GZIP", Gzip, false},
		{"zstd", Zstd, false},
		{"xz", Xz, false},
		{"bzip2", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCompression(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseCompression(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestOpenSourceUncompressed(t *testing.T) {
	rc, err := OpenSource(runtimeExport(t))
	if err != nil {
		t.Fatalf("OpenSource failed: %v", err)
	}
	defer rc.Close()
	if entries := readArchive(t, rc); len(entries) != 4 {
		t.Errorf("expected 4 raw entries, got %d", len(entries))
	}
}
