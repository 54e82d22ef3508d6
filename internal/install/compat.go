package install

import (
	"slices"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/giantswarm/appenv/internal/manifest"
)

// Stage says which manifest a Rule applies to.
type Stage int

const (
	// StageBootstrap rules apply to the bootstrap manifest used to run the
	// scaffold, and again to the application manifest.
	StageBootstrap Stage = iota
	// StageApplication rules apply only to the application manifest.
	StageApplication
)

// Facts are the versions compatibility rules are evaluated against. Empty
// fields are unknown and match no version predicate.
type Facts struct {
	TargetVersion  string // framework version requested, "" for default
	RuntimeVersion string
	RuntimeEngine  string
}

// Rule pins Dependency to Constraint when When holds.
type Rule struct {
	Name       string
	Stage      Stage
	Dependency string
	Constraint string
	When       func(Facts) bool
}

// Rules is the compatibility table for legacy framework and runtime versions.
var Rules = []Rule{
	{
		Name: "i18n-framework-3.0", Stage: StageBootstrap,
		Dependency: "i18n", Constraint: "= 0.5.0",
		When: func(f Facts) bool { return targetSeries(f, "v3.0") },
	},
	{
		Name: "i18n-runtime-1.8", Stage: StageBootstrap,
		Dependency: "i18n", Constraint: "< 0.7.0",
		When: func(f Facts) bool { return !targetSeries(f, "v3.0") && runtimeSeries(f, "v1.8") },
	},
	{
		Name: "rake-runtime-1.8", Stage: StageBootstrap,
		Dependency: "rake", Constraint: "< 11.0.0",
		When: func(f Facts) bool { return runtimeSeries(f, "v1.8") },
	},
	{
		Name: "rack-cache-runtime-1", Stage: StageBootstrap,
		Dependency: "rack-cache", Constraint: "< 1.3.0",
		When: func(f Facts) bool {
			return runtimeMajor(f, "v1") && (targetSeries(f, "v3.1") || targetSeries(f, "v3.2"))
		},
	},
	{
		Name: "mime-types-runtime-1", Stage: StageBootstrap,
		Dependency: "mime-types", Constraint: "< 3.0.0",
		When: func(f Facts) bool { return runtimeMajor(f, "v1") },
	},
	{
		Name: "execjs-runtime-1.8", Stage: StageApplication,
		Dependency: "execjs", Constraint: "~> 2.0.0",
		When: func(f Facts) bool { return runtimeSeries(f, "v1.8") },
	},
	{
		Name: "uglifier-runtime-1", Stage: StageApplication,
		Dependency: "uglifier", Constraint: "< 3.0.0",
		When: func(f Facts) bool { return runtimeMajor(f, "v1") },
	},
}

// Matching returns the rules of the given stages that hold for f, in table order.
func Matching(rules []Rule, f Facts, stages ...Stage) []Rule {
	var out []Rule
	for _, r := range rules {
		if !slices.Contains(stages, r.Stage) || r.When == nil || !r.When(f) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Apply requires every matching rule's constraint in m and returns the
// names of the rules applied.
func Apply(m *manifest.Manifest, rules []Rule, f Facts, stages ...Stage) ([]string, error) {
	var applied []string
	for _, r := range Matching(rules, f, stages...) {
		if err := m.Require(r.Dependency, r.Constraint); err != nil {
			return applied, err
		}
		applied = append(applied, r.Name)
	}
	return applied, nil
}

func targetSeries(f Facts, series string) bool {
	v := Canonical(f.TargetVersion)
	return v != "" && semver.MajorMinor(v) == series
}

func runtimeSeries(f Facts, series string) bool {
	v := Canonical(f.RuntimeVersion)
	return v != "" && semver.MajorMinor(v) == series
}

func runtimeMajor(f Facts, major string) bool {
	v := Canonical(f.RuntimeVersion)
	return v != "" && semver.Major(v) == major
}

// Canonical turns a gem-style version such as "3.2.22.5" or "2.7.8p225"
// into a semver string over its first three numeric components ("v3.2.22").
// It returns "" when v does not start with a number.
func Canonical(v string) string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	parts := make([]string, 0, 3)
	for _, p := range strings.SplitN(v, ".", 4) {
		if len(parts) == 3 {
			break
		}
		n := leadingDigits(p)
		if n == "" {
			break
		}
		parts = append(parts, n)
		if len(n) != len(p) {
			break
		}
	}
	if len(parts) == 0 {
		return ""
	}
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	c := "v" + strings.Join(parts, ".")
	if !semver.IsValid(c) {
		return ""
	}
	return c
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}
