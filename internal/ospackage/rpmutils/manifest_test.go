package rpmutils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleManifest = `bash;4.4.19;3.fc28;x86_64;(none);6630696;a1b2c3;1526488520;RSA/SHA256, Wed 16 May 2018 05:22:04 PM UTC, Key ID e08e7e629db62fb1;(none)
gpg-pubkey;9db62fb1;59920156;(none);(none);0;(none);1502740822;(none);(none)
glibc;2.27;8.fc28;x86_64;(none);13394416;d4e5f6;1523880064;(none);DSA/SHA1, Mon 16 Apr 2018 12:00:00 PM UTC, Key ID 0123456789ABCDEF

too;short
eog;3.28.1;1.module_1717+7b2c0c1d;x86_64;1;18402328;abcdef;1525450342;(none);(none)
`

func TestParseManifest(t *testing.T) {
	components, err := ParseManifest(strings.NewReader(sampleManifest))
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	if len(components) != 3 {
		t.Fatalf("expected 3 components, got %d: %+v", len(components), components)
	}

	bash := components[0]
	if bash.Name != "bash" || bash.Version != "4.4.19" || bash.Release != "3.fc28" || bash.Arch != "x86_64" {
		t.Errorf("unexpected bash component: %+v", bash)
	}
	if bash.Epoch != nil {
		t.Errorf("(none) epoch should be absent, got %d", *bash.Epoch)
	}
	if bash.Signature != "e08e7e629db62fb1" {
		t.Errorf("expected key id from SIGPGP, got %q", bash.Signature)
	}

	glibc := components[1]
	if glibc.Signature != "0123456789abcdef" {
		t.Errorf("expected key id from SIGGPG fallback, got %q", glibc.Signature)
	}

	eog := components[2]
	if eog.Epoch == nil || *eog.Epoch != 1 {
		t.Errorf("expected epoch 1 for eog, got %v", eog.Epoch)
	}
	if eog.Signature != "" {
		t.Errorf("unsigned package should have no signature, got %q", eog.Signature)
	}
}

func TestParseManifestInvalidEpoch(t *testing.T) {
	_, err := ParseManifest(strings.NewReader("foo;1;1;noarch;abc;0;x;0;(none);(none)\n"))
	if err == nil {
		t.Fatal("expected error for invalid epoch")
	}
	if !errors.Is(err, ErrManifestParse) {
		t.Errorf("expected ErrManifestParse, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 1") {
		t.Errorf("error should name the line: %v", err)
	}
}

func TestParseManifestFileMissing(t *testing.T) {
	_, err := ParseManifestFile(filepath.Join(t.TempDir(), "missing.rpm_qf"))
	if !errors.Is(err, ErrManifestParse) {
		t.Errorf("expected ErrManifestParse for missing file, got %v", err)
	}
}

func TestParseManifestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flatpak-build.rpm_qf")
	if err := os.WriteFile(path, []byte(sampleManifest), 0644); err != nil {
		t.Fatal(err)
	}
	components, err := ParseManifestFile(path)
	if err != nil {
		t.Fatalf("ParseManifestFile failed: %v", err)
	}
	if len(components) != 3 {
		t.Errorf("expected 3 components, got %d", len(components))
	}
}

func TestFilenameEpochRendering(t *testing.T) {
	zero := 0
	two := 2
	tests := []struct {
		name string
		c    Component
		want string
	}{
		{"no epoch", Component{Name: "eog", Version: "3.28.1", Release: "1", Arch: "x86_64"}, "eog-0:3.28.1-1.x86_64.rpm"},
		{"epoch zero", Component{Name: "eog", Epoch: &zero, Version: "3.28.1", Release: "1", Arch: "x86_64"}, "eog-0:3.28.1-1.x86_64.rpm"},
		{"epoch two", Component{Name: "exiv2-libs", Epoch: &two, Version: "0.26", Release: "10.fc28", Arch: "x86_64"}, "exiv2-libs-2:0.26-10.fc28.x86_64.rpm"},
	}
	for _, tt := range tests {
		if got := tt.c.Filename(); got != tt.want {
			t.Errorf("%s: Filename() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestSortComponents(t *testing.T) {
	components := []Component{
		{Name: "zlib", Version: "1.2.11", Release: "8"},
		{Name: "bash", Version: "4.4.10", Release: "1"},
		{Name: "bash", Version: "4.4.9", Release: "1"},
	}
	SortComponents(components)
	got := []string{}
	for _, c := range components {
		got = append(got, c.Name+"-"+c.Version)
	}
	want := "bash-4.4.9,bash-4.4.10,zlib-1.2.11"
	if strings.Join(got, ",") != want {
		t.Errorf("sorted = %v, want %s", got, want)
	}
}

func TestFilenamesFromDir(t *testing.T) {
	dir := t.TempDir()
	names, err := FilenamesFromDir(dir)
	if err != nil {
		t.Fatalf("FilenamesFromDir on empty dir failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no names, got %v", names)
	}

	if err := os.WriteFile(filepath.Join(dir, "eog-3.28.1-1.src.rpm"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}
	if names, err := FilenamesFromDir(dir); err != nil || len(names) != 0 {
		t.Errorf("source rpms should be skipped, got %v, %v", names, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "broken-1-1.x86_64.rpm"), []byte("not an rpm"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := FilenamesFromDir(dir); err == nil {
		t.Error("expected error for a corrupt rpm")
	}
}

func TestFilenamesFromDirMissing(t *testing.T) {
	_, err := FilenamesFromDir(filepath.Join(t.TempDir(), "missing"))
	if err == nil || !strings.Contains(err.Error(), "reading rpm directory") {
		t.Errorf("expected missing directory error, got %v", err)
	}
}
