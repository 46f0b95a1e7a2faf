package rpmutils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	rpm "github.com/sassoftware/go-rpmutils"
)

// ErrManifestParse reports an unreadable or malformed package manifest.
var ErrManifestParse = errors.New("package manifest parse failure")

// QueryFormat is the rpm --qf format producing the manifest parsed here.
const QueryFormat = "%{NAME};%{VERSION};%{RELEASE};%{ARCH};%{EPOCH};%{SIZE};%{SIGMD5};%{BUILDTIME};%{SIGPGP:pgpsig};%{SIGGPG:pgpsig}\\n"

var queryTags = []string{"NAME", "VERSION", "RELEASE", "ARCH", "EPOCH", "SIZE", "SIGMD5", "BUILDTIME", "SIGPGP", "SIGGPG"}

const (
	fieldName = iota
	fieldVersion
	fieldRelease
	fieldArch
	fieldEpoch
	fieldSize
	fieldSigMD5
	fieldBuildTime
	fieldSigPGP
	fieldSigGPG
)

var keyIDRe = regexp.MustCompile(`Key ID ([0-9a-fA-F]+)`)

// Component is one installed package from the manifest.
type Component struct {
	Name    string
	Epoch   *int
	Version string
	Release string
	Arch    string
	SigMD5  string
	// Signature is the signing key id, empty for unsigned packages.
	Signature string
}

// EpochString renders the epoch, with a missing epoch shown as 0.
func (c Component) EpochString() string {
	if c.Epoch == nil {
		return "0"
	}
	return strconv.Itoa(*c.Epoch)
}

// NEVRA returns the go-rpmutils identity of the component.
func (c Component) NEVRA() rpm.NEVRA {
	return rpm.NEVRA{
		Name:    c.Name,
		Epoch:   c.EpochString(),
		Version: c.Version,
		Release: c.Release,
		Arch:    c.Arch,
	}
}

// Filename is the canonical name-epoch:version-release.arch.rpm form.
//
// A missing epoch is rendered as 0, so a package without an epoch and the
// same package with epoch 0 share one filename. Module build metadata makes
// the same conflation; keep it for attribution lookups.
func (c Component) Filename() string {
	n := c.NEVRA()
	return n.String()
}

func field(fields []string, i int) string {
	if fields[i] == "(none)" {
		return ""
	}
	return fields[i]
}

// ParseManifest reads rpm query output in QueryFormat. Blank and short lines
// and gpg-pubkey pseudo packages are skipped.
func ParseManifest(r io.Reader) ([]Component, error) {
	var components []Component
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Split(line, ";")
		if len(fields) < len(queryTags) {
			continue
		}
		name := field(fields, fieldName)
		if name == "gpg-pubkey" {
			continue
		}
		if name == "" {
			return nil, fmt.Errorf("%w: line %d: missing package name", ErrManifestParse, lineNo)
		}

		c := Component{
			Name:    name,
			Version: field(fields, fieldVersion),
			Release: field(fields, fieldRelease),
			Arch:    field(fields, fieldArch),
			SigMD5:  field(fields, fieldSigMD5),
		}
		if e := field(fields, fieldEpoch); e != "" {
			epoch, err := strconv.Atoi(e)
			if err != nil || epoch < 0 {
				return nil, fmt.Errorf("%w: line %d: invalid epoch %q for %s", ErrManifestParse, lineNo, e, name)
			}
			c.Epoch = &epoch
		}
		sig := field(fields, fieldSigPGP)
		if sig == "" {
			sig = field(fields, fieldSigGPG)
		}
		if m := keyIDRe.FindStringSubmatch(sig); m != nil {
			c.Signature = strings.ToLower(m[1])
		}
		components = append(components, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestParse, err)
	}
	return components, nil
}

// ParseManifestFile parses the manifest extracted from the filesystem export.
func ParseManifestFile(path string) ([]Component, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestParse, err)
	}
	defer f.Close()
	return ParseManifest(f)
}

// SortComponents orders components by name, then by rpm version ordering.
func SortComponents(components []Component) {
	sort.SliceStable(components, func(i, j int) bool {
		a, b := components[i], components[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return rpm.NEVRAcmp(a.NEVRA(), b.NEVRA()) < 0
	})
}
