package models

import (
	"errors"
	"testing"
)

func TestNormalizeItemCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2045-Black", "2045"},
		{"2045-Black-XL", "2045"},
		{"2045", "2045"},
		{"  3010-A  ", "3010"},
		{"FG-100", "FG"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeItemCode(c.in); got != c.want {
			t.Errorf("NormalizeItemCode(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCategoryForItemCode(t *testing.T) {
	cases := []struct {
		in   string
		want BomCategory
	}{
		{"2045", BomCategoryFinished},
		{"2045-Black", BomCategoryFinished},
		{"3010", BomCategoryLocal},
	}
	for _, c := range cases {
		got, err := CategoryForItemCode(c.in)
		if err != nil {
			t.Errorf("CategoryForItemCode(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("CategoryForItemCode(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestCategoryForItemCode_OutsideConvention(t *testing.T) {
	for _, code := range []string{"9999", "FG-100", ""} {
		_, err := CategoryForItemCode(code)
		var ube *UnresolvableBomError
		if !errors.As(err, &ube) {
			t.Errorf("CategoryForItemCode(%q): got %v, want UnresolvableBomError", code, err)
		}
	}
}
