package testmatch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSplitRegexp(t *testing.T) {
	tests := []struct {
		pattern string
		want    []string
	}{
		{"", []string{""}},
		{"suite", []string{"suite"}},
		{"suite/test", []string{"suite", "test"}},
		{"/test", []string{"", "test"}},
		{"suite/", []string{"suite", ""}},
		{"suite/test/1", []string{"suite", "test", "1"}},
		{"suite/test/1/2/3", []string{"suite", "test", "1", "2", "3"}},
		{"suite/test/1/2/3/4/5/6/7", []string{"suite", "test", "1", "2", "3", "4", "5", "6", "7"}},
		{`a\/b/c`, []string{`a\/b`, "c"}},
		{"[/]/x", []string{"[/]", "x"}},
		{"a(b/c)/d", []string{"a(b/c)", "d"}},
		{"[(]/x", []string{"[(]", "x"}},
		{"[)]/x", []string{"[)]", "x"}},
		{"]/x", []string{"]", "x"}},
		{"x/(a|[/])/y", []string{"x", "(a|[/])", "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, splitRegexp(tt.pattern))
		})
	}
}

func TestMatchSuiteAndTest(t *testing.T) {
	m := MustParse("sim/test")

	assert.True(t, m.Match("sim", "test"))
	assert.True(t, m.Match("Sim", "Test"))
	assert.True(t, m.Match("Sim", "TestTest"))
	assert.False(t, m.Match("Sim", "Tst"))
	assert.False(t, m.Match("other", "test"))
}

func TestMatchTestOnly(t *testing.T) {
	m := MustParse("/test")

	assert.True(t, m.Match("sim", "test"))
	assert.True(t, m.Match("", "Test"))
	assert.True(t, m.Match("", "aTesta"))
	assert.True(t, m.Match("bob", "test"))
	assert.False(t, m.Match("bob", "tset"))

	m = MustParse("/GetEnr")
	assert.True(t, m.Match("history-rpc-compat", "portal_historyGetEnr Local Enr"))
}

func TestMatchSuiteOnly(t *testing.T) {
	m := MustParse("sim")

	assert.True(t, m.Match("sim", ""))
	assert.True(t, m.Match("Sim", ""))
	assert.True(t, m.Match("Sim", "Test"))
	assert.True(t, m.Match("Sim", "anything"))
	assert.False(t, m.Match("state", "anything"))
}

func TestMatchDeepLevels(t *testing.T) {
	m := MustParse("suite/test/1")

	assert.Equal(t, "(?i:test/1)", m.TestExpr())
	assert.True(t, m.Match("suite", "test/1"))
	assert.False(t, m.Match("suite", "test"))
}

func TestNilMatcherMatchesEverything(t *testing.T) {
	var m *Matcher
	assert.True(t, m.Match("", ""))
	assert.True(t, m.Match("any", "thing"))
	assert.Empty(t, m.Pattern())
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("(unclosed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "suite pattern")

	_, err = Parse("ok/[z-a]")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test pattern")

	assert.Panics(t, func() { MustParse("a/(") })
}

func TestExprAccessors(t *testing.T) {
	m := MustParse("eth/sync")
	assert.Equal(t, "eth/sync", m.Pattern())
	assert.Equal(t, "(?i:eth)", m.SuiteExpr())
	assert.Equal(t, "(?i:sync)", m.TestExpr())
}

var (
	levelGen = rapid.StringMatching(`[a-zA-Z]{0,4}`)
	nameGen  = rapid.StringMatching(`[a-zA-Z ]{0,8}`)
)

func TestPropertySuiteOnlyPatternIgnoresTest(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		m := MustParse(levelGen.Draw(rt, "pattern"))
		suite := nameGen.Draw(rt, "suite")
		a, b := nameGen.Draw(rt, "testA"), nameGen.Draw(rt, "testB")
		if m.Match(suite, a) != m.Match(suite, b) {
			rt.Fatalf("pattern %q: result depends on test name (%q vs %q)", m.Pattern(), a, b)
		}
	})
}

func TestPropertyTestOnlyPatternIgnoresSuite(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		m := MustParse("/" + levelGen.Draw(rt, "test pattern"))
		test := nameGen.Draw(rt, "test")
		a, b := nameGen.Draw(rt, "suiteA"), nameGen.Draw(rt, "suiteB")
		if m.Match(a, test) != m.Match(b, test) {
			rt.Fatalf("pattern %q: result depends on suite name (%q vs %q)", m.Pattern(), a, b)
		}
	})
}

func TestPropertyEscapedSlashNeverSplits(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		levels := rapid.SliceOfN(levelGen, 0, 4).Draw(rt, "levels")
		escaped := levelGen.Draw(rt, "left") + `\/` + levelGen.Draw(rt, "right")
		parts := splitRegexp(strings.Join(append(levels, escaped), "/"))
		if len(parts) != len(levels)+1 {
			rt.Fatalf("got %d parts, want %d: %q", len(parts), len(levels)+1, parts)
		}
		if parts[len(parts)-1] != escaped {
			rt.Fatalf("escaped level was split: %q", parts)
		}
	})
}

func TestPropertyNestedSlashNeverSplits(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		levels := rapid.SliceOfN(levelGen, 0, 4).Draw(rt, "levels")
		open := rapid.SampledFrom([]string{"[", "("}).Draw(rt, "open")
		closing := "]"
		if open == "(" {
			closing = ")"
		}
		inner := strings.Join(rapid.SliceOfN(levelGen, 2, 4).Draw(rt, "inner"), "/")
		nested := open + inner + closing
		parts := splitRegexp(strings.Join(append(levels, nested), "/"))
		if len(parts) != len(levels)+1 {
			rt.Fatalf("got %d parts, want %d: %q", len(parts), len(levels)+1, parts)
		}
		if parts[len(parts)-1] != nested {
			rt.Fatalf("nested level was split: %q", parts)
		}
	})
}

func TestPropertyCaseInsensitive(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		levels := rapid.SliceOfN(levelGen, 1, 3).Draw(rt, "levels")
		m := MustParse(strings.Join(levels, "/"))
		suite, test := nameGen.Draw(rt, "suite"), nameGen.Draw(rt, "test")
		want := m.Match(suite, test)
		if m.Match(strings.ToLower(suite), strings.ToLower(test)) != want ||
			m.Match(strings.ToUpper(suite), strings.ToUpper(test)) != want {
			rt.Fatalf("pattern %q is case sensitive for (%q, %q)", m.Pattern(), suite, test)
		}
	})
}
