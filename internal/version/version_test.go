package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	got := String()
	if !strings.HasPrefix(got, "adbpg ") {
		t.Errorf("String() = %q", got)
	}
	for _, part := range []string{Version, "commit: " + Commit, "built: " + BuildDate} {
		if !strings.Contains(got, part) {
			t.Errorf("String() = %q, missing %q", got, part)
		}
	}
}
