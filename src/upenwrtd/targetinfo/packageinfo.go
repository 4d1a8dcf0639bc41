package targetinfo

import (
	"io"
	"sort"
	"strings"
)

// Package is one entry of a .packageinfo file.
type Package struct {
	Name     string
	Provides []string
}

// PackageInfo indexes packages by name and by every alias they provide.
// Each package appears under its own name in Aliases.
type PackageInfo struct {
	Packages map[string]*Package
	Aliases  map[string][]*Package
}

// NewPackageInfo returns an empty index.
func NewPackageInfo() *PackageInfo {
	return &PackageInfo{
		Packages: make(map[string]*Package),
		Aliases:  make(map[string][]*Package),
	}
}

// Add indexes p under its name and its aliases. A later entry with the same
// name replaces the earlier one.
func (pi *PackageInfo) Add(p *Package) {
	if old, ok := pi.Packages[p.Name]; ok {
		pi.remove(old)
	}
	pi.Packages[p.Name] = p
	pi.Aliases[p.Name] = append(pi.Aliases[p.Name], p)
	for _, a := range p.Provides {
		if a == p.Name {
			continue
		}
		pi.Aliases[a] = append(pi.Aliases[a], p)
	}
}

func (pi *PackageInfo) remove(p *Package) {
	for alias, pkgs := range pi.Aliases {
		kept := pkgs[:0]
		for _, q := range pkgs {
			if q != p {
				kept = append(kept, q)
			}
		}
		if len(kept) == 0 {
			delete(pi.Aliases, alias)
		} else {
			pi.Aliases[alias] = kept
		}
	}
	delete(pi.Packages, p.Name)
}

// Knows reports whether name is a package or an alias provided by one.
func (pi *PackageInfo) Knows(name string) bool {
	if pi == nil {
		return false
	}
	return len(pi.Aliases[name]) > 0
}

// Providers returns the packages reachable through alias, sorted by name.
func (pi *PackageInfo) Providers(alias string) []*Package {
	if pi == nil {
		return nil
	}
	providers := append([]*Package(nil), pi.Aliases[alias]...)
	sort.Slice(providers, func(i, j int) bool { return providers[i].Name < providers[j].Name })
	return providers
}

func stepPackage(pi *PackageInfo, rec record) *PackageInfo {
	name := strings.TrimSpace(rec.fields[fieldPackage])
	if name == "" {
		strangeSection(rec)
		return pi
	}

	seen := make(map[string]bool)
	var provides []string
	for _, a := range rec.list(fieldProvides) {
		if !seen[a] {
			seen[a] = true
			provides = append(provides, a)
		}
	}
	sort.Strings(provides)

	pi.Add(&Package{Name: name, Provides: provides})
	return pi
}

// ParsePackageInfo parses a .packageinfo stream. Records without a Package
// field are logged and skipped; only read errors are returned.
func ParsePackageInfo(r io.Reader) (*PackageInfo, error) {
	pi, err := foldRecords(r, NewPackageInfo(), stepPackage)
	if err != nil {
		return nil, err
	}
	return pi, nil
}
