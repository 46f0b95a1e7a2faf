package pathmap

import "github.com/open-edge-platform/flatpak-composer/internal/flatpak"

// RuntimeRules places a runtime's /usr under files/. ROOT itself maps to
// files so that files/ precedes files/etc in the output; ROOT/usr is then
// omitted. ROOT/usr/etc would collide with ROOT/etc and is dropped.
func RuntimeRules() []Rule {
	return []Rule{
		Map("ROOT", "files"),
		Exclude("ROOT/usr"),
		Exclude("ROOT/usr/etc/"),
		Map("ROOT/usr/", "files"),
		Map("ROOT/etc/", "files/etc"),
	}
}

// AppRules places an application's /app prefix under files/.
func AppRules() []Rule {
	return []Rule{
		Map("ROOT/app/", "files"),
	}
}

var (
	runtimeMatcher = Compile(RuntimeRules())
	appMatcher     = Compile(AppRules())
)

// ForMode returns the compiled rule set for the bundle mode.
func ForMode(mode flatpak.Mode) *Matcher {
	if mode == flatpak.ModeRuntime {
		return runtimeMatcher
	}
	return appMatcher
}
