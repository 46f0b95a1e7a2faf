package pathmap

import (
	"testing"

	"github.com/open-edge-platform/flatpak-composer/internal/flatpak"
)

func TestTargetOrderSensitivity(t *testing.T) {
	m := Compile([]Rule{Exclude("a/b"), Map("a/", "files")})

	if got, ok := m.Target("a/b"); ok {
		t.Errorf("a/b should be dropped, got %q", got)
	}
	if got, ok := m.Target("a/c"); !ok || got != "files/c" {
		t.Errorf("a/c should map to files/c, got %q (%v)", got, ok)
	}
	if got, ok := m.Target("a"); !ok || got != "files" {
		t.Errorf("directory a itself should map to files, got %q (%v)", got, ok)
	}

	// Reversed, the broad rule shadows the exclusion.
	rev := Compile([]Rule{Map("a/", "files"), Exclude("a/b")})
	if got, ok := rev.Target("a/b"); !ok || got != "files/b" {
		t.Errorf("with the broad rule first a/b should map to files/b, got %q (%v)", got, ok)
	}
}

func TestTargetExactRuleDoesNotMatchChildren(t *testing.T) {
	m := Compile([]Rule{Map("etc/motd", "files/motd")})
	if _, ok := m.Target("etc/motd/extra"); ok {
		t.Error("exact rule must not match below the path")
	}
	if _, ok := m.Target("etc"); ok {
		t.Error("exact rule must not match a parent")
	}
	if got, ok := m.Target("etc/motd"); !ok || got != "files/motd" {
		t.Errorf("exact match failed: %q (%v)", got, ok)
	}
}

func TestRootTokenExpansion(t *testing.T) {
	m := Compile([]Rule{Map("ROOT/app/", "files")})
	if got, ok := m.Target(flatpak.BuildRoot + "/app/bin/eog"); !ok || got != "files/bin/eog" {
		t.Errorf("expected files/bin/eog, got %q (%v)", got, ok)
	}
	if _, ok := m.Target("ROOT/app/bin/eog"); ok {
		t.Error("ROOT must be expanded at compile time, not matched literally")
	}
}

func TestRuntimeRules(t *testing.T) {
	m := ForMode(flatpak.ModeRuntime)
	tests := []struct {
		path   string
		want   string
		mapped bool
	}{
		{"var/tmp/flatpak-build", "files", true},
		{"var/tmp/flatpak-build/usr", "", false},
		{"var/tmp/flatpak-build/usr/bin", "files/bin", true},
		{"var/tmp/flatpak-build/usr/bin/foo", "files/bin/foo", true},
		{"var/tmp/flatpak-build/usr/etc", "", false},
		{"var/tmp/flatpak-build/usr/etc/baz", "", false},
		{"var/tmp/flatpak-build/etc", "files/etc", true},
		{"var/tmp/flatpak-build/etc/bar.conf", "files/etc/bar.conf", true},
		{"var/tmp/flatpak-build/var/lib/rpm", "", false},
		{"var/tmp/flatpak-build.rpm_qf", "", false},
		{"usr/bin/bash", "", false},
	}
	for _, tt := range tests {
		got, ok := m.Target(tt.path)
		if ok != tt.mapped || got != tt.want {
			t.Errorf("Target(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.mapped)
		}
	}
}

func TestAppRules(t *testing.T) {
	m := ForMode(flatpak.ModeApplication)
	tests := []struct {
		path   string
		want   string
		mapped bool
	}{
		{"var/tmp/flatpak-build/app", "files", true},
		{"var/tmp/flatpak-build/app/share/applications/eog.desktop", "files/share/applications/eog.desktop", true},
		{"var/tmp/flatpak-build/usr/bin/foo", "", false},
		{"var/tmp/flatpak-build", "", false},
	}
	for _, tt := range tests {
		got, ok := m.Target(tt.path)
		if ok != tt.mapped || got != tt.want {
			t.Errorf("Target(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.mapped)
		}
	}
}

func TestTargetIsNotReapplied(t *testing.T) {
	for _, mode := range []flatpak.Mode{flatpak.ModeRuntime, flatpak.ModeApplication} {
		m := ForMode(mode)
		for _, p := range []string{
			"var/tmp/flatpak-build/usr/bin/foo",
			"var/tmp/flatpak-build/app/bin/foo",
			"var/tmp/flatpak-build/etc/bar.conf",
		} {
			mapped, ok := m.Target(p)
			if !ok {
				continue
			}
			if again, ok := m.Target(mapped); ok {
				t.Errorf("%s: mapped path %q was mapped again to %q", mode, mapped, again)
			}
		}
	}
}

func TestRuleSetsAreIndependentCopies(t *testing.T) {
	rules := RuntimeRules()
	rules[0] = Exclude("ROOT")
	if got, ok := ForMode(flatpak.ModeRuntime).Target(flatpak.BuildRoot); !ok || got != "files" {
		t.Errorf("mutating a returned rule list must not affect the compiled set, got %q (%v)", got, ok)
	}
}
