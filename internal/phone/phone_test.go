package phone

import "testing"

func TestNormalizeFR(t *testing.T) {
	n := NewNormalizer(CountryFR)

	cases := []struct {
		in   string
		want string
	}{
		{"06 12 34 56 78", "+33612345678"},
		{"0612345678", "+33612345678"},
		{"+33612345678", "+33612345678"},
		{"0033612345678", "+33612345678"},
		{"33612345678", "+33612345678"},
		{"06-12-34-56-78", "+33612345678"},
		{"(06) 12.34.56.78", "+33612345678"},
	}
	for _, tc := range cases {
		if got := n.Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeBE(t *testing.T) {
	n := NewNormalizer(CountryBE)

	if got := n.Normalize("0470123456"); got != "+32470123456" {
		t.Fatalf("trunk number: got %q", got)
	}
	if got := n.Normalize("+32470123456"); got != "+32470123456" {
		t.Fatalf("already normalized: got %q", got)
	}
}

func TestNormalizeBestEffort(t *testing.T) {
	n := NewNormalizer(CountryFR)

	// Too short to guess a country; returned as-is after stripping.
	if got := n.Normalize("12345"); got != "12345" {
		t.Fatalf("short number: got %q", got)
	}
	if got := n.Normalize(""); got != "" {
		t.Fatalf("empty: got %q", got)
	}
	// "+" only allowed in leading position.
	if got := n.Normalize("06+12345678"); got != "+33612345678" {
		t.Fatalf("stray plus: got %q", got)
	}
}
