package capture

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/cases"
)

// Matcher selects windows by owning application name. Patterns use glob
// syntax and are compared after Unicode case folding, so a plain name is a
// case-insensitive equality test.
type Matcher struct {
	patterns []string
}

func NewMatcher(patterns ...string) (*Matcher, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("at least one window pattern is required")
	}

	folded := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		f := fold(p)
		if !doublestar.ValidatePattern(f) {
			return nil, fmt.Errorf("invalid window pattern %q", p)
		}
		folded = append(folded, f)
	}
	if len(folded) == 0 {
		return nil, fmt.Errorf("at least one window pattern is required")
	}

	return &Matcher{patterns: folded}, nil
}

func (m *Matcher) Match(appName string) bool {
	name := fold(appName)
	for _, p := range m.patterns {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Find returns the first matching window. Several matches can only happen when
// more than one instance is running; the first one wins.
func (m *Matcher) Find(windows []Window) (Window, bool) {
	for _, w := range windows {
		if m.Match(w.AppName()) {
			return w, true
		}
	}
	return nil, false
}

func (m *Matcher) String() string {
	return fmt.Sprintf("%v", m.patterns)
}

// fold allocates a Caser per call; cases.Caser is not safe for concurrent use.
func fold(s string) string {
	return cases.Fold().String(s)
}
