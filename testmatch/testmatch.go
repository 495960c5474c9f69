// Package testmatch implements the hierarchical suite/test selection pattern used to
// enable or skip parts of a simulation run.
//
// A pattern is a '/'-separated list of regular expressions. The first level selects
// suites, everything after the first separator selects tests. Separators inside a
// character class, inside a group, or escaped with a backslash do not split levels.
package testmatch

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher decides whether a suite or test should run. A nil *Matcher matches
// everything.
type Matcher struct {
	suite   *regexp.Regexp
	test    *regexp.Regexp
	pattern string
}

// Parse compiles the given pattern. Matching is case-insensitive.
func Parse(pattern string) (*Matcher, error) {
	parts := splitRegexp(pattern)
	m := &Matcher{pattern: pattern}

	var err error
	m.suite, err = regexp.Compile("(?i:" + parts[0] + ")")
	if err != nil {
		return nil, fmt.Errorf("invalid suite pattern %q: %w", parts[0], err)
	}

	testExpr := ""
	if len(parts) > 1 {
		testExpr = strings.Join(parts[1:], "/")
	}
	m.test, err = regexp.Compile("(?i:" + testExpr + ")")
	if err != nil {
		return nil, fmt.Errorf("invalid test pattern %q: %w", testExpr, err)
	}
	return m, nil
}

// MustParse is like Parse but panics if the pattern cannot be compiled.
func MustParse(pattern string) *Matcher {
	m, err := Parse(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

// Match reports whether the suite and test names are selected by the pattern.
// An empty test name only checks the suite level.
func (m *Matcher) Match(suite, test string) bool {
	if m == nil {
		return true
	}
	if !m.suite.MatchString(suite) {
		return false
	}
	if test != "" && !m.test.MatchString(test) {
		return false
	}
	return true
}

// Pattern returns the source pattern.
func (m *Matcher) Pattern() string {
	if m == nil {
		return ""
	}
	return m.pattern
}

// SuiteExpr returns the compiled suite-level expression.
func (m *Matcher) SuiteExpr() string {
	if m == nil {
		return ""
	}
	return m.suite.String()
}

// TestExpr returns the compiled test-level expression.
func (m *Matcher) TestExpr() string {
	if m == nil {
		return ""
	}
	return m.test.String()
}

func (m *Matcher) String() string {
	return m.Pattern()
}

// splitRegexp splits the expression s into /-separated parts.
func splitRegexp(s string) []string {
	parts := make([]string, 0, strings.Count(s, "/")+1)
	brackets := 0
	parens := 0
	for i := 0; i < len(s); {
		switch s[i] {
		case '[':
			brackets++
		case ']':
			// An unmatched ']' is legal.
			if brackets--; brackets < 0 {
				brackets = 0
			}
		case '(':
			if brackets == 0 {
				parens++
			}
		case ')':
			if brackets == 0 {
				parens--
			}
		case '\\':
			i++
		case '/':
			if brackets == 0 && parens == 0 {
				parts = append(parts, s[:i])
				s = s[i+1:]
				i = 0
				continue
			}
		}
		i++
	}
	return append(parts, s)
}
