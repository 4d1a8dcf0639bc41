package reconcile

import (
	"fmt"
	"regexp"
)

// FixupRule rewrites a package name the image builder does not know.
// An empty Replace drops the package from the request.
type FixupRule struct {
	Pattern string `mapstructure:"pattern" json:"pattern"`
	Replace string `mapstructure:"replace" json:"replace"`
}

// Fixup is a compiled FixupRule.
type Fixup struct {
	FixupRule
	re *regexp.Regexp
}

// DefaultFixupRules covers naming drift seen between OpenWrt releases.
// Rules must be idempotent: a rewritten name must not match again.
func DefaultFixupRules() []FixupRule {
	return []FixupRule{
		// libgcc1 and friends became plain libgcc
		{Pattern: `^libgcc[0-9]+$`, Replace: "libgcc"},
		// the kernel package always comes with the image builder
		{Pattern: `^kernel$`, Replace: ""},
		// libustream-openssl20201210 -> libustream-openssl
		{Pattern: `^(libustream-[a-z]+)[0-9]{8}$`, Replace: "$1"},
	}
}

// CompileFixups compiles rules in order.
func CompileFixups(rules []FixupRule) ([]Fixup, error) {
	fixups := make([]Fixup, 0, len(rules))
	for i, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid fixup #%d %q: %w", i, rule.Pattern, err)
		}
		fixups = append(fixups, Fixup{FixupRule: rule, re: re})
	}
	return fixups, nil
}

// applyFixups runs every matching rule in order and reports whether any matched.
func applyFixups(fixups []Fixup, name string) (string, bool) {
	matched := false
	for _, f := range fixups {
		if !f.re.MatchString(name) {
			continue
		}
		matched = true
		name = f.re.ReplaceAllString(name, f.Replace)
		if name == "" {
			break
		}
	}
	return name, matched
}
