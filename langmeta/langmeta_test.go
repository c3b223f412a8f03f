package langmeta

import (
	"sort"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "pt_br", want: "pt-BR"},
		{in: " EN-us ", want: "en-US"},
		{in: "ru", want: "ru"},
		{in: "iw", want: "he"},
		{in: "", want: ""},
	}

	for _, tc := range cases {
		got := canonicalize(tc.in)
		if got != tc.want {
			t.Fatalf("canonicalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolve(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want Meta
	}{
		{name: "exact match", in: "en-GB", want: Registry["en-GB"]},
		{name: "normalized match", in: "pt_br", want: Registry["pt-BR"]},
		{name: "underscore region", in: "zh_cn", want: Registry["zh-CN"]},
		{name: "base fallback", in: "fr-LU", want: Registry["fr"]},
		{name: "legacy code", in: "iw", want: Registry["he"]},
		{name: "unknown passthrough", in: "zz-ZZ", want: Meta{Name: "zz-ZZ"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Resolve(tc.in); got != tc.want {
				t.Fatalf("Resolve(%q) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}

func TestKnown(t *testing.T) {
	for _, code := range []string{"ru", "tl", "pt_br", "es-419"} {
		if !Known(code) {
			t.Fatalf("Known(%q) = false, want true", code)
		}
	}
	for _, code := range []string{"zz", "not a locale", ""} {
		if Known(code) {
			t.Fatalf("Known(%q) = true, want false", code)
		}
	}
}

func TestCodes(t *testing.T) {
	codes := Codes()
	if len(codes) != len(Registry) {
		t.Fatalf("Codes returned %d entries, want %d", len(codes), len(Registry))
	}
	if !sort.StringsAreSorted(codes) {
		t.Fatalf("Codes not sorted: %v", codes)
	}
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		seen[code] = true
	}
	for _, code := range []string{"en", "ru", "zh-CN", "tl"} {
		if !seen[code] {
			t.Fatalf("Codes missing %q", code)
		}
	}
}
