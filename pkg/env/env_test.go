package env

import "testing"

func TestGetPrefersPrefixedName(t *testing.T) {
	t.Setenv("LOG_FORMAT", "console")
	if got := Get("LOG_FORMAT", "json"); got != "console" {
		t.Fatalf("expected unprefixed value, got %q", got)
	}
	t.Setenv(Prefix+"LOG_FORMAT", " json ")
	if got := Get("LOG_FORMAT", "console"); got != "json" {
		t.Fatalf("expected prefixed value to win, got %q", got)
	}
}

func TestGetFallsBackOnBlank(t *testing.T) {
	t.Setenv(Prefix+"LOG_WARN_STACK", "   ")
	if got := Get("LOG_WARN_STACK", "false"); got != "false" {
		t.Fatalf("blank values must fall back, got %q", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv(Prefix+"FLAG_A", "true")
	t.Setenv(Prefix+"FLAG_B", "nope")
	if !Bool("FLAG_A", false) {
		t.Fatalf("expected FLAG_A true")
	}
	if !Bool("FLAG_B", true) {
		t.Fatalf("unparsable value must keep fallback")
	}
	if Bool("FLAG_UNSET", false) {
		t.Fatalf("unset value must keep fallback")
	}
}
