package rpmutils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/open-edge-platform/flatpak-composer/internal/utils/logger"
	rpm "github.com/sassoftware/go-rpmutils"
)

// FilenameFromRPM reads the header of a built .rpm and returns its
// canonical name-epoch:version-release.arch.rpm filename.
func FilenameFromRPM(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	hdr, err := rpm.ReadHeader(f)
	if err != nil {
		return "", fmt.Errorf("reading rpm header of %s: %w", path, err)
	}
	nevra, err := hdr.GetNEVRA()
	if err != nil {
		return "", fmt.Errorf("reading NEVRA of %s: %w", path, err)
	}
	if nevra.Epoch == "" {
		nevra.Epoch = "0"
	}
	return nevra.String(), nil
}

// FilenamesFromDir returns the sorted canonical filenames of every binary
// .rpm in dir. Source rpms are skipped.
func FilenamesFromDir(dir string) ([]string, error) {
	log := logger.Logger()

	if info, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("reading rpm directory: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("rpm directory %s is not a directory", dir)
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.rpm"))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	var names []string
	for _, p := range paths {
		if filepath.Ext(p[:len(p)-len(".rpm")]) == ".src" {
			continue
		}
		name, err := FilenameFromRPM(p)
		if err != nil {
			return nil, err
		}
		log.Debugf("%s provides %s", filepath.Base(p), name)
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
