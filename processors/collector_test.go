package processors

import "testing"

func TestParseISODuration(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"PT10M", 600},
		{"PT1H2M3S", 3723},
		{"PT90S", 90},
		{"PT0S", 0},
		{"P1DT1S", 86401},
		{"P1W", 604800},
	}
	for _, c := range cases {
		got, err := parseISODuration(c.in)
		if err != nil {
			t.Errorf("parseISODuration(%q) failed: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("parseISODuration(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseISODurationInvalid(t *testing.T) {
	for _, in := range []string{"", "10M", "PTXS", "PT5"} {
		if _, err := parseISODuration(in); err == nil {
			t.Errorf("parseISODuration(%q) should fail", in)
		}
	}
}
