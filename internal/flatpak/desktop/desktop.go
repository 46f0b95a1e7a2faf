// Package desktop renames the desktop files and icons of an application build
// directory so they carry the application id, as flatpak requires for
// exported files.
package desktop

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-edge-platform/flatpak-composer/internal/utils/logger"
	"github.com/open-edge-platform/flatpak-composer/internal/utils/shell"
)

const (
	applicationsDir = "files/share/applications"
	hicolorDir      = "files/share/icons/hicolor"
	desktopSuffix   = ".desktop"
	desktopSection  = "Desktop Entry"
)

// AddAppPrefix prefixes full with appID. When appID already ends with
// "."+root that component is stripped first, so
// AddAppPrefix("org.gnome.eog", "eog", "eog.desktop") is "org.gnome.eog.desktop"
// and AddAppPrefix("org.gimp", "gimp", "gimp.desktop") is "org.gimp.desktop".
func AddAppPrefix(appID, root, full string) string {
	prefix := strings.TrimSuffix(appID, "."+root)
	return prefix + "." + full
}

// UpdateDesktopFiles applies the application id prefix to every desktop file
// under files/share/applications in builddir and to the hicolor icons those
// files reference.
func UpdateDesktopFiles(appID, builddir string) error {
	log := logger.Logger()

	desktopFiles, err := findFiles(filepath.Join(builddir, applicationsDir), func(name string) bool {
		return strings.HasSuffix(name, desktopSuffix)
	})
	if err != nil {
		return fmt.Errorf("listing desktop files: %w", err)
	}

	for _, fullPath := range desktopFiles {
		icon, err := readIcon(fullPath)
		if err != nil {
			return err
		}

		if icon != "" && !strings.HasPrefix(icon, appID) {
			icons, err := findFiles(filepath.Join(builddir, hicolorDir), func(name string) bool {
				return strings.HasPrefix(name, icon+".")
			})
			if err != nil {
				return fmt.Errorf("listing icons for %s: %w", icon, err)
			}
			for _, iconFile := range icons {
				dest := filepath.Join(filepath.Dir(iconFile), AddAppPrefix(appID, icon, filepath.Base(iconFile)))
				if err := copyFile(iconFile, dest); err != nil {
					return fmt.Errorf("copying icon %s: %w", iconFile, err)
				}
				log.Debugf("copied icon %s to %s", iconFile, dest)
			}
			if len(icons) > 0 {
				cmd := shell.Join("desktop-file-edit", "--set-icon", AddAppPrefix(appID, icon, icon), fullPath)
				if _, err := shell.ExecCmd(cmd, nil); err != nil {
					return fmt.Errorf("setting icon of %s: %w", fullPath, err)
				}
			}
		}

		base := filepath.Base(fullPath)
		if !strings.HasPrefix(base, appID) {
			dest := filepath.Join(filepath.Dir(fullPath), AddAppPrefix(appID, strings.TrimSuffix(base, desktopSuffix), base))
			if err := os.Rename(fullPath, dest); err != nil {
				return fmt.Errorf("renaming desktop file %s: %w", fullPath, err)
			}
			log.Infof("renamed desktop file %s to %s", base, filepath.Base(dest))
		}
	}
	return nil
}

// findFiles returns the regular files below root whose base name satisfies
// match, in lexical order. A missing root yields no files.
func findFiles(root string, match func(string) bool) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root && os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() && match(d.Name()) {
			found = append(found, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// readIcon returns the Icon key of the [Desktop Entry] group of a desktop file.
func readIcon(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening desktop file: %w", err)
	}
	defer f.Close()

	icon, err := parseIcon(f)
	if err != nil {
		return "", fmt.Errorf("reading desktop file %s: %w", path, err)
	}
	return icon, nil
}

func parseIcon(r io.Reader) (string, error) {
	s := bufio.NewScanner(r)
	var section, icon string
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.Trim(line, "[]")
			continue
		}
		if section != desktopSection {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.TrimSpace(parts[0]) == "Icon" {
			icon = strings.TrimSpace(parts[1])
		}
	}
	if err := s.Err(); err != nil {
		return "", err
	}
	return icon, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
