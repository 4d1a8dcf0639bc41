// Package reconcile turns the package list a router reports into the explicit
// package list handed to the image builder.
//
// Package names drift between releases (library version suffixes, renames)
// while "Provides" aliases stay stable, so clients may annotate each entry
// with the aliases it provides ("name,alias1,alias2"). Two correlation passes
// use those aliases: first against the defaults of the firmware the router
// currently runs, then against what the target image builder offers.
package reconcile

import (
	"sort"
	"strings"

	"github.com/bitswalk/upenwrt/src/common/errors"
	"github.com/bitswalk/upenwrt/src/common/logs"
	"github.com/bitswalk/upenwrt/src/upenwrtd/targetinfo"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the reconcile package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Config holds the reconciliation configuration
type Config struct {
	Fixups []FixupRule `mapstructure:"fixups"`
}

// DefaultConfig returns the built-in fixup rules
func DefaultConfig() Config {
	return Config{Fixups: DefaultFixupRules()}
}

// Defaults are the packages a firmware installs without being asked.
type Defaults struct {
	Target  []string
	Profile []string
}

// Input is everything one reconciliation needs.
type Input struct {
	// Requested entries are "name" or "name,alias1,alias2".
	Requested []string
	// Source holds the defaults of the firmware currently running, nil when unknown.
	Source *Defaults
	// Builder holds the defaults of the target image builder.
	Builder *Defaults
	// Packages is the target image builder's package index.
	Packages *targetinfo.PackageInfo
}

// Result is the outcome of a reconciliation. All lists are sorted.
type Result struct {
	// Install is the explicit package list for the build.
	Install []string
	// Removed lists defaults the client did not report. Informational only.
	Removed []string
	// Defaults is the subtracted default set.
	Defaults []string
}

// Engine reconciles package sets. It is safe for concurrent use.
type Engine struct {
	fixups []Fixup
}

// New creates an engine from configuration
func New(cfg Config) (*Engine, error) {
	fixups, err := CompileFixups(cfg.Fixups)
	if err != nil {
		return nil, err
	}
	return &Engine{fixups: fixups}, nil
}

// ParseRequested splits "primary[,alias]*" entries into primary -> aliases.
// Empty entries are ignored; repeated primaries merge their aliases.
func ParseRequested(entries []string) map[string][]string {
	requested := make(map[string][]string)
	for _, entry := range entries {
		var parts []string
		for _, p := range strings.Split(entry, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			continue
		}
		primary := parts[0]
		aliases := requested[primary]
		for _, a := range parts[1:] {
			if a != primary && !contains(aliases, a) {
				aliases = append(aliases, a)
			}
		}
		requested[primary] = aliases
	}
	return requested
}

// Delta splits the symmetric difference of defaults and requested into the
// defaults that were not requested and the requested names that are not defaults.
func Delta(defaults, requested []string) (removed, installed []string) {
	r, i := delta(newSet(defaults...), newSet(requested...))
	return r.sorted(), i.sorted()
}

func delta(defaults, requested set) (removed, installed set) {
	return defaults.minus(requested), requested.minus(defaults)
}

// Reconcile computes the explicit package list for the image builder.
func (e *Engine) Reconcile(in Input) (*Result, error) {
	requested := ParseRequested(in.Requested)

	defaults := newSet()
	if in.Source == nil {
		log.Warn("No source defaults known, not subtracting default packages")
	} else {
		target, profile := newSet(in.Source.Target...), newSet(in.Source.Profile...)
		log.Debug("Source defaults",
			"target_only", target.minus(profile).sorted(),
			"profile_only", profile.minus(target).sorted(),
			"common", target.intersect(profile).sorted())
		defaults = target.union(profile)
	}

	// Pass 1: a requested name may be the stale spelling of a default.
	canonical := newSet()
	for primary, aliases := range requested {
		name, err := correlateDefaults(primary, aliases, defaults)
		if err != nil {
			return nil, err
		}
		canonical.add(name)
	}

	removed, installed := delta(defaults, canonical)
	log.Info("Reconciled against source defaults",
		"defaults", defaults.sorted(),
		"removed", removed.sorted(),
		"installed", installed.sorted())

	// Pass 2: make every installed name one the image builder understands.
	known := e.knownFunc(in)
	result := newSet()
	for _, name := range installed.sorted() {
		fixed, err := e.correlateBuilder(name, requested[name], known)
		if err != nil {
			return nil, err
		}
		if fixed == "" {
			log.Debug("Dropping package", "package", name)
			continue
		}
		// The client reported a default under a name only the fixups recognize.
		if removed.has(fixed) {
			log.Debug("Fixed name is a source default", "package", name, "resolved", fixed)
			delete(removed, fixed)
		}
		result.add(fixed)
	}

	return &Result{
		Install:  result.sorted(),
		Removed:  removed.sorted(),
		Defaults: defaults.sorted(),
	}, nil
}

func (e *Engine) knownFunc(in Input) func(string) bool {
	builderDefaults := newSet()
	if in.Builder != nil {
		builderDefaults = newSet(in.Builder.Target...).union(newSet(in.Builder.Profile...))
	}
	return func(name string) bool {
		return in.Packages.Knows(name) || builderDefaults.has(name)
	}
}

func correlateDefaults(primary string, aliases []string, defaults set) (string, error) {
	if defaults.has(primary) {
		return primary, nil
	}

	var hits []string
	for _, a := range aliases {
		if defaults.has(a) {
			hits = append(hits, a)
		}
	}

	switch len(hits) {
	case 0:
		return primary, nil
	case 1:
		log.Debug("Substituting default alias", "package", primary, "alias", hits[0])
		return hits[0], nil
	default:
		sort.Strings(hits)
		return "", errors.ErrAmbiguousAlias.
			WithMessagef("Package %s matches several default packages: %s", primary, strings.Join(hits, " ")).
			WithDetail("package", primary).
			WithDetail("candidates", hits)
	}
}

func (e *Engine) correlateBuilder(name string, aliases []string, known func(string) bool) (string, error) {
	if known(name) {
		return name, nil
	}

	fixed, matched := applyFixups(e.fixups, name)
	if matched {
		log.Debug("Applied fixup", "package", name, "fixed", fixed)
		if fixed == "" || known(fixed) {
			return fixed, nil
		}
	}

	var candidates []string
	for _, a := range aliases {
		if known(a) && !contains(candidates, a) {
			candidates = append(candidates, a)
		}
	}
	sort.Strings(candidates)

	switch len(candidates) {
	case 0:
		log.Debug("Package unknown to image builder, keeping name", "package", fixed)
		return fixed, nil
	case 1:
		log.Debug("Substituting builder alias", "package", name, "alias", candidates[0])
		return candidates[0], nil
	}

	var narrowed []string
	for _, c := range candidates {
		if strings.Contains(name, c) {
			narrowed = append(narrowed, c)
		}
	}
	if len(narrowed) == 1 {
		log.Debug("Substituting builder alias by name match", "package", name, "alias", narrowed[0])
		return narrowed[0], nil
	}

	return "", errors.ErrAmbiguousAlias.
		WithMessagef("Package %s has several candidates in the image builder: %s", name, strings.Join(candidates, " ")).
		WithDetail("package", name).
		WithDetail("candidates", candidates)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
