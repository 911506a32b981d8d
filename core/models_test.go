package core

import "testing"

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "[00:00:00]"},
		{59.9, "[00:00:59]"},
		{61, "[00:01:01]"},
		{3661, "[01:01:01]"},
		{36000, "[10:00:00]"},
	}
	for _, c := range cases {
		if got := FormatTimestamp(c.seconds); got != c.want {
			t.Errorf("FormatTimestamp(%f) = %q, want %q", c.seconds, got, c.want)
		}
	}
}
