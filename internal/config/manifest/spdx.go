package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/open-edge-platform/flatpak-composer/internal/ospackage/rpmutils"
)

const (
	spdxVersion     = "SPDX-2.3"
	spdxDataLicense = "CC0-1.0"
	spdxNamespace   = "https://spdx.org/spdxdocs/flatpak-composer-"
	noAssertion     = "NOASSERTION"
)

type spdxDocument struct {
	SPDXVersion       string           `json:"spdxVersion"`
	DataLicense       string           `json:"dataLicense"`
	SPDXID            string           `json:"SPDXID"`
	Name              string           `json:"name"`
	DocumentNamespace string           `json:"documentNamespace"`
	CreationInfo      spdxCreationInfo `json:"creationInfo"`
	Packages          []spdxPackage    `json:"packages"`
}

type spdxCreationInfo struct {
	Created  string   `json:"created"`
	Creators []string `json:"creators"`
}

type spdxPackage struct {
	Name             string            `json:"name"`
	SPDXID           string            `json:"SPDXID"`
	VersionInfo      string            `json:"versionInfo"`
	DownloadLocation string            `json:"downloadLocation"`
	FilesAnalyzed    bool              `json:"filesAnalyzed"`
	LicenseConcluded string            `json:"licenseConcluded"`
	Checksums        []spdxChecksum    `json:"checksums,omitempty"`
	ExternalRefs     []spdxExternalRef `json:"externalRefs,omitempty"`
}

type spdxChecksum struct {
	Algorithm     string `json:"algorithm"`
	ChecksumValue string `json:"checksumValue"`
}

type spdxExternalRef struct {
	ReferenceCategory string `json:"referenceCategory"`
	ReferenceType     string `json:"referenceType"`
	ReferenceLocator  string `json:"referenceLocator"`
}

func generateDocumentNamespace() string {
	return spdxNamespace + uuid.NewString()
}

// spdxID turns s into a valid SPDX element id.
func spdxID(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	return "SPDXRef-Package-" + b.String()
}

func purl(c rpmutils.Component) string {
	p := fmt.Sprintf("pkg:rpm/%s@%s-%s?arch=%s", c.Name, c.Version, c.Release, c.Arch)
	if c.Epoch != nil {
		p += fmt.Sprintf("&epoch=%d", *c.Epoch)
	}
	return p
}

// WriteSPDXToFile writes an SPDX 2.3 JSON document named name listing
// components to path.
func WriteSPDXToFile(name string, components []rpmutils.Component, path string) error {
	doc := spdxDocument{
		SPDXVersion:       spdxVersion,
		DataLicense:       spdxDataLicense,
		SPDXID:            "SPDXRef-DOCUMENT",
		Name:              name,
		DocumentNamespace: generateDocumentNamespace(),
		CreationInfo: spdxCreationInfo{
			Created:  time.Now().UTC().Format(time.RFC3339),
			Creators: []string{"Tool: flatpak-composer"},
		},
		Packages: make([]spdxPackage, 0, len(components)),
	}

	seen := make(map[string]int)
	for _, c := range components {
		id := spdxID(c.Filename())
		seen[id]++
		if n := seen[id]; n > 1 {
			id = fmt.Sprintf("%s-%d", id, n)
		}
		pkg := spdxPackage{
			Name:             c.Name,
			SPDXID:           id,
			VersionInfo:      c.EpochString() + ":" + c.Version + "-" + c.Release,
			DownloadLocation: noAssertion,
			LicenseConcluded: noAssertion,
			ExternalRefs: []spdxExternalRef{{
				ReferenceCategory: "PACKAGE-MANAGER",
				ReferenceType:     "purl",
				ReferenceLocator:  purl(c),
			}},
		}
		if c.SigMD5 != "" {
			pkg.Checksums = []spdxChecksum{{Algorithm: "MD5", ChecksumValue: c.SigMD5}}
		}
		doc.Packages = append(doc.Packages, pkg)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding SPDX document: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing SPDX document: %w", err)
	}
	return nil
}
