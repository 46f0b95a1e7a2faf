// Package manifest writes the build records that accompany an OCI bundle: a
// JSON manifest of the exported images and an SPDX document of the packages
// the image contains.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const SchemaVersion = "1.0"

// Image types of exported artifacts.
const (
	ImageTypeOCI    = "oci"
	ImageTypeOCITar = "oci-tar"
)

// ExportedImage describes one artifact of a build.
type ExportedImage struct {
	Path      string `json:"path"`
	Type      string `json:"type"`
	SizeBytes int64  `json:"size_bytes"`
	// Hash is empty for directory artifacts.
	Hash    string `json:"hash,omitempty"`
	HashAlg string `json:"hash_alg,omitempty"`
	RefName string `json:"ref_name"`
}

// SoftwarePackageManifest is the record of one bundle build.
type SoftwarePackageManifest struct {
	SchemaVersion string          `json:"schema_version"`
	Ref           string          `json:"ref"`
	ImageVersion  string          `json:"image_version"`
	BuiltAt       string          `json:"built_at"`
	Arch          string          `json:"arch"`
	Images        []ExportedImage `json:"images"`
	Components    []string        `json:"components"`
	Signature     string          `json:"signature,omitempty"`
	SigAlg        string          `json:"sig_alg,omitempty"`
}

// NewSoftwarePackageManifest starts a manifest stamped with the current time.
func NewSoftwarePackageManifest(ref, version, arch string) SoftwarePackageManifest {
	return SoftwarePackageManifest{
		SchemaVersion: SchemaVersion,
		Ref:           ref,
		ImageVersion:  version,
		BuiltAt:       time.Now().UTC().Format(time.RFC3339),
		Arch:          arch,
	}
}

// ImageMetadata computes the size of path and, for a regular file, its
// sha256 digest.
func ImageMetadata(path, imageType, refName string) (ExportedImage, error) {
	img := ExportedImage{Path: path, Type: imageType, RefName: refName}

	info, err := os.Stat(path)
	if err != nil {
		return img, fmt.Errorf("reading image %s: %w", path, err)
	}

	if info.IsDir() {
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				fi, err := d.Info()
				if err != nil {
					return err
				}
				img.SizeBytes += fi.Size()
			}
			return nil
		})
		if err != nil {
			return img, fmt.Errorf("sizing image directory %s: %w", path, err)
		}
		return img, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return img, fmt.Errorf("opening image %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return img, fmt.Errorf("hashing image %s: %w", path, err)
	}
	img.SizeBytes = n
	img.Hash = hex.EncodeToString(h.Sum(nil))
	img.HashAlg = "sha256"
	return img, nil
}

// WriteManifestToFile writes m as indented JSON to path.
func WriteManifestToFile(m SoftwarePackageManifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadManifestFromFile loads a manifest written by WriteManifestToFile.
func ReadManifestFromFile(path string) (*SoftwarePackageManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m SoftwarePackageManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", path, err)
	}
	return &m, nil
}
