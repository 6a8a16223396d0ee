package platform

import (
	"errors"
	"testing"
)

func TestParseVersion(t *testing.T) {
	cases := []struct {
		value string
		want  Version
		err   bool
	}{
		{value: "3.7.0", want: Version{3, 7, 0}},
		{value: "0.0.1", want: Version{0, 0, 1}},
		{value: " 1.2.3 ", want: Version{1, 2, 3}},
		{value: "", err: true},
		{value: "1.2", err: true},
		{value: "1.2.3.4", err: true},
		{value: "v1.2.3", err: true},
		{value: "1.2.x", err: true},
		{value: "1.2.3-rc1", err: true},
		{value: "1..3", err: true},
	}
	for _, tc := range cases {
		got, err := ParseVersion(tc.value)
		if tc.err {
			if !errors.Is(err, ErrInvalidVersion) {
				t.Fatalf("%q: expected ErrInvalidVersion, got %v", tc.value, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.value, err)
		}
		if got != tc.want {
			t.Fatalf("%q: expected %v, got %v", tc.value, got, got)
		}
	}
}

func TestVersionOrdering(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"3.7.0", "3.7.5", -1},
		{"3.7.5", "3.7.0", 1},
		{"3.7.5", "3.7.5", 0},
		{"3.10.0", "3.9.9", 1},
		{"2.99.99", "3.0.0", -1},
	}
	for _, tc := range cases {
		a := MustParseVersion(tc.a)
		b := MustParseVersion(tc.b)
		if got := a.Compare(b); got != tc.want {
			t.Fatalf("Compare(%s, %s) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}

	if !MustParseVersion("3.7.0").Less(MustParseVersion("3.7.5")) {
		t.Fatal("3.7.0 must order before 3.7.5")
	}
}

func TestVersionString(t *testing.T) {
	if got := MustParseVersion("3.7.5").String(); got != "3.7.5" {
		t.Fatalf("unexpected string %q", got)
	}
}
