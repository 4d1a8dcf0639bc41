package targetinfo

import (
	"reflect"
	"strings"
	"testing"
)

const samplePackageInfo = `Source-Makefile: package/libs/ustream-ssl/Makefile
Package: libustream-openssl
Provides: libustream-openssl20201210 libustream-ssl
Version: 2020-12-10
@@

Package: libustream-wolfssl
Provides: libustream-ssl
@@

Package: luci
@@

Version: 1
@@
`

func TestParsePackageInfo(t *testing.T) {
	pi, err := ParsePackageInfo(strings.NewReader(samplePackageInfo))
	if err != nil {
		t.Fatalf("ParsePackageInfo() error: %v", err)
	}

	if len(pi.Packages) != 3 {
		t.Fatalf("expected 3 packages, got %d", len(pi.Packages))
	}

	tests := []struct {
		alias string
		want  []string
	}{
		{"luci", []string{"luci"}},
		{"libustream-openssl", []string{"libustream-openssl"}},
		{"libustream-openssl20201210", []string{"libustream-openssl"}},
		{"libustream-ssl", []string{"libustream-openssl", "libustream-wolfssl"}},
		{"nope", nil},
	}

	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			var got []string
			for _, p := range pi.Providers(tt.alias) {
				got = append(got, p.Name)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Providers(%q) = %v, want %v", tt.alias, got, tt.want)
			}
			if pi.Knows(tt.alias) != (tt.want != nil) {
				t.Errorf("Knows(%q) = %v", tt.alias, pi.Knows(tt.alias))
			}
		})
	}
}

func TestPackageInfo_SelfAlias(t *testing.T) {
	pi, err := ParsePackageInfo(strings.NewReader(samplePackageInfo))
	if err != nil {
		t.Fatal(err)
	}
	for name, p := range pi.Packages {
		found := false
		for _, q := range pi.Aliases[name] {
			if q == p {
				found = true
			}
		}
		if !found {
			t.Errorf("package %s is not indexed under its own name", name)
		}
	}
}

func TestPackageInfo_AddReplaces(t *testing.T) {
	pi := NewPackageInfo()
	pi.Add(&Package{Name: "a", Provides: []string{"x"}})
	pi.Add(&Package{Name: "a", Provides: []string{"y"}})

	if pi.Knows("x") {
		t.Error("replaced package must drop its old aliases")
	}
	if got := pi.Providers("a"); len(got) != 1 {
		t.Errorf("expected a single provider for a, got %d", len(got))
	}
	if !pi.Knows("y") {
		t.Error("expected new alias y")
	}
}

func TestPackageInfo_NilSafe(t *testing.T) {
	var pi *PackageInfo
	if pi.Knows("x") || pi.Providers("x") != nil {
		t.Error("nil index must know nothing")
	}
}
