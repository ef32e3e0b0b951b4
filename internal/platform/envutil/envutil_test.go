package envutil

import (
	"testing"
	"time"
)

func TestParsersFallBackToDefault(t *testing.T) {
	t.Setenv("ENVUTIL_INT", "nope")
	t.Setenv("ENVUTIL_BOOL", "maybe")
	t.Setenv("ENVUTIL_FLOAT", "")

	if got := Int("ENVUTIL_INT", 7); got != 7 {
		t.Fatalf("Int: want=7 got=%d", got)
	}
	if got := Bool("ENVUTIL_BOOL", true); !got {
		t.Fatalf("Bool: want=true got=%v", got)
	}
	if got := Float("ENVUTIL_FLOAT", 1.5); got != 1.5 {
		t.Fatalf("Float: want=1.5 got=%v", got)
	}
}

func TestDurationAcceptsSecondsAndGoSyntax(t *testing.T) {
	t.Setenv("ENVUTIL_DUR_A", "90s")
	t.Setenv("ENVUTIL_DUR_B", "45")

	if got := Duration("ENVUTIL_DUR_A", time.Second); got != 90*time.Second {
		t.Fatalf("go syntax: want=90s got=%v", got)
	}
	if got := Duration("ENVUTIL_DUR_B", time.Second); got != 45*time.Second {
		t.Fatalf("seconds: want=45s got=%v", got)
	}
	if got := Int64("ENVUTIL_MISSING", 10000); got != 10000 {
		t.Fatalf("Int64 default: want=10000 got=%d", got)
	}
}
