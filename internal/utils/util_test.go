package utils

import "testing"

func TestPrettyTime(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0:00"},
		{59, "0:59"},
		{61, "1:01"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
		{-4, "0:00"},
	}
	for _, tt := range tests {
		if got := PrettyTime(tt.in); got != tt.want {
			t.Errorf("PrettyTime(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscapeMd(t *testing.T) {
	if got := EscapeMd("a*b_c`d~e|f"); got != `a\*b\_c\`+"`"+`d\~e\|f` {
		t.Errorf("EscapeMd = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo", 3); got != "hél" {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("ok", 10); got != "ok" {
		t.Errorf("Truncate short = %q", got)
	}
}
