package targetinfo

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

const (
	recordSeparator = "@@"
	profilePrefix   = "DEVICE_"

	fieldTarget          = "Target"
	fieldTargetPackages  = "Default-Packages"
	fieldProfile         = "Target-Profile"
	fieldProfileDevices  = "Target-Profile-SupportedDevices"
	fieldProfilePackages = "Target-Profile-Packages"
	fieldPackage         = "Package"
	fieldProvides        = "Provides"
)

// record is one "@@"-terminated block of "Key: value" lines.
type record struct {
	fields map[string]string
	raw    []string
}

func (r record) has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

func (r record) list(key string) []string {
	return strings.Fields(r.fields[key])
}

// foldRecords reads r line by line and threads acc through step once per
// completed record. A trailing record without separator is dropped.
func foldRecords[A any](r io.Reader, acc A, step func(A, record) A) (A, error) {
	br := bufio.NewReader(r)
	cur := record{fields: make(map[string]string)}

	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return acc, err
		}
		eof := err != nil
		if eof && line == "" {
			break
		}

		line = strings.TrimRight(line, "\r\n")
		cur.raw = append(cur.raw, line)

		if line == recordSeparator {
			acc = step(acc, cur)
			cur = record{fields: make(map[string]string)}
		} else if key, value, ok := strings.Cut(line, ": "); ok && key != "" && !strings.ContainsAny(key, " \t") {
			cur.fields[key] = value
		}

		if eof {
			break
		}
	}

	if len(cur.fields) > 0 {
		log.Debug("Dropping truncated record", "lines", len(cur.raw))
	}
	return acc, nil
}

func strangeSection(rec record) {
	log.Debug("Skipping strange section", "section", strings.Join(rec.raw, "\n"))
}

// targetFold is the accumulator threaded through a .targetinfo scan. Profile
// records carry no back-reference, so they attach to current.
type targetFold struct {
	info    *TargetInfo
	current *Target
}

func stepTarget(acc targetFold, rec record) targetFold {
	switch {
	case rec.has(fieldProfile):
		name, ok := strings.CutPrefix(rec.fields[fieldProfile], profilePrefix)
		if !ok || name == "" || acc.current == nil {
			strangeSection(rec)
			return acc
		}
		profile := &Profile{
			Name:     name,
			Target:   acc.current.Name,
			Packages: rec.list(fieldProfilePackages),
			Devices:  rec.list(fieldProfileDevices),
		}
		for _, d := range profile.Devices {
			acc.info.Profiles[d] = profile
		}
		acc.info.Profiles[profile.Name] = profile
		acc.current.Profiles[profile.Name] = profile

	case rec.has(fieldTarget):
		target := &Target{
			Name:     rec.fields[fieldTarget],
			Packages: rec.list(fieldTargetPackages),
			Profiles: make(map[string]*Profile),
		}
		acc.info.Targets[target.Name] = target
		acc.current = target

	default:
		strangeSection(rec)
	}
	return acc
}

// ParseTargetInfo parses a .targetinfo stream. Malformed records are logged
// and skipped; only read errors are returned.
func ParseTargetInfo(r io.Reader) (*TargetInfo, error) {
	acc := targetFold{
		info: &TargetInfo{
			Profiles: make(map[string]*Profile),
			Targets:  make(map[string]*Target),
		},
	}

	acc, err := foldRecords(r, acc, stepTarget)
	if err != nil {
		return nil, err
	}
	return acc.info, nil
}
