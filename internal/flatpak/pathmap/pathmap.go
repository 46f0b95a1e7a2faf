// Package pathmap compiles ordered path mapping rules into a matcher that
// places entries of the exported container filesystem in the flatpak tree.
//
// A rule source is either a literal path, matched exactly, or a directory
// ending in "/", which matches the directory itself and everything below it.
// A leading "ROOT" in a source stands for the flatpak build root. Rules are
// evaluated in declaration order and the first match wins, so exclusions
// must come before the broader rule they carve a hole in.
package pathmap

import (
	"path"
	"strings"

	"github.com/open-edge-platform/flatpak-composer/internal/flatpak"
)

const rootToken = "ROOT"

// Rule maps Source to Target, or drops matching paths when Drop is set.
type Rule struct {
	Source string
	Target string
	Drop   bool
}

// Map returns a rule placing source at target.
func Map(source, target string) Rule {
	return Rule{Source: source, Target: target}
}

// Exclude returns a rule dropping source.
func Exclude(source string) Rule {
	return Rule{Source: source, Drop: true}
}

type pattern struct {
	source string
	target string
	drop   bool
	exact  bool
}

// Matcher is an immutable compiled rule list.
type Matcher struct {
	patterns []pattern
}

// Compile expands rules into the patterns evaluated by Target.
func Compile(rules []Rule) *Matcher {
	m := &Matcher{patterns: make([]pattern, 0, 2*len(rules))}
	for _, r := range rules {
		source := r.Source
		if strings.HasPrefix(source, rootToken) {
			source = flatpak.BuildRoot + strings.TrimPrefix(source, rootToken)
		}
		if strings.HasSuffix(source, "/") {
			m.patterns = append(m.patterns,
				pattern{source: source, target: r.Target, drop: r.Drop},
				pattern{source: strings.TrimSuffix(source, "/"), target: r.Target, drop: r.Drop, exact: true})
		} else {
			m.patterns = append(m.patterns, pattern{source: source, target: r.Target, drop: r.Drop, exact: true})
		}
	}
	return m
}

// Target returns where p belongs in the flatpak tree. The boolean is false
// when p is explicitly excluded or matches no rule.
func (m *Matcher) Target(p string) (string, bool) {
	for _, pat := range m.patterns {
		if pat.exact {
			if pat.source != p {
				continue
			}
			if pat.drop {
				return "", false
			}
			return pat.target, true
		}
		if !strings.HasPrefix(p, pat.source) {
			continue
		}
		if pat.drop {
			return "", false
		}
		return path.Join(pat.target, strings.TrimPrefix(p, pat.source)), true
	}
	return "", false
}
