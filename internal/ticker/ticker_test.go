package ticker

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"PETR4", "PETR4.SA"},
		{"petr4", "PETR4.SA"},
		{"  vale3 ", "VALE3.SA"},
		{"TAEE11", "TAEE11.SA"},
		{"VALE3F", "VALE3F.SA"},
		{"PETR4.SA", "PETR4.SA"},
		{"^BVSP", "^BVSP"},
		{"AAPL", "AAPL"},
		{"BRL=X", "BRL=X"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Normalize(tc.in)
			if err != nil {
				t.Fatalf("Normalize(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalize_Invalid(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"PETR 4",
		"../etc/passwd",
		"PETR4;DROP",
		"averylongsymbolthatcannotname",
	}
	for _, in := range cases {
		t.Run(in, func(t *testing.T) {
			if _, err := Normalize(in); !errors.Is(err, ErrInvalidTicker) {
				t.Errorf("Normalize(%q) err = %v, want ErrInvalidTicker", in, err)
			}
		})
	}
}
