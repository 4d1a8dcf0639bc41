// Package targetinfo parses the OpenWrt build-system metadata files
// (.targetinfo and .packageinfo) into lookup structures.
package targetinfo

import (
	"os"
	"sort"
	"strings"

	"github.com/bitswalk/upenwrt/src/common/errors"
	"github.com/bitswalk/upenwrt/src/common/logs"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the targetinfo package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Profile is a device profile within a target. It is never modified after parsing.
type Profile struct {
	Name     string
	Target   string
	Packages []string
	Devices  []string
}

// Target is a hardware target with its default packages and owned profiles.
type Target struct {
	Name     string
	Packages []string
	Profiles map[string]*Profile
}

// TargetInfo is a parsed .targetinfo snapshot.
type TargetInfo struct {
	// Profiles indexes every profile by its name and by each of its device aliases.
	Profiles map[string]*Profile
	// Targets owns the target hierarchy.
	Targets map[string]*Target
}

// Target returns the named target, or nil.
func (ti *TargetInfo) Target(name string) *Target {
	return ti.Targets[name]
}

// Profile looks a board up by profile name or device alias.
func (ti *TargetInfo) Profile(board string) *Profile {
	return ti.Profiles[board]
}

// TargetProfile looks a board up within one target only.
func (ti *TargetInfo) TargetProfile(target, board string) *Profile {
	p := ti.Profiles[board]
	if p == nil || p.Target != target {
		return nil
	}
	return p
}

// TargetNames returns the sorted list of targets.
func (ti *TargetInfo) TargetNames() []string {
	names := make([]string, 0, len(ti.Targets))
	for name := range ti.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dump renders the (target, profile, device) tree as an indented list, every
// level sorted. An empty or unknown target dumps every target.
func (ti *TargetInfo) Dump(target string) string {
	names := ti.TargetNames()
	if _, ok := ti.Targets[target]; ok {
		names = []string{target}
	}

	var lines []string
	for _, t := range names {
		lines = append(lines, "- Target: "+t)

		tgt := ti.Targets[t]
		profiles := make([]string, 0, len(tgt.Profiles))
		for p := range tgt.Profiles {
			profiles = append(profiles, p)
		}
		sort.Strings(profiles)

		for _, p := range profiles {
			lines = append(lines, "\t- Profile: "+p)
			devices := append([]string(nil), tgt.Profiles[p].Devices...)
			sort.Strings(devices)
			for _, d := range devices {
				lines = append(lines, "\t\t- Device: "+d)
			}
		}
	}
	return strings.Join(lines, "\n")
}

// LoadTargetInfo parses a .targetinfo file. Only I/O errors are reported.
func LoadTargetInfo(path string) (*TargetInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	log.Debug("Parsing targetinfo", "path", path)
	return ParseTargetInfo(f)
}

// LoadPackageInfo parses a .packageinfo file. Only I/O errors are reported.
func LoadPackageInfo(path string) (*PackageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	log.Debug("Parsing packageinfo", "path", path)
	return ParsePackageInfo(f)
}

// SplitTarget splits a target name such as "ath79/generic" into its
// architecture and subtarget. Exactly one slash is required.
func SplitTarget(name string) (arch, subtarget string, err error) {
	arch, subtarget, ok := strings.Cut(name, "/")
	if !ok || arch == "" || subtarget == "" || strings.Contains(subtarget, "/") || arch == ".." || subtarget == ".." {
		return "", "", errors.ErrInvalidArgument.
			WithMessagef("Bad target name %q: expected <arch>/<subtarget>", name).
			WithDetail("target", name)
	}
	return arch, subtarget, nil
}
