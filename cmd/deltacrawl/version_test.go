package main

import (
	"strings"
	"testing"
)

func TestVersionInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   func() string
	}{
		{name: "version", fn: getVersion},
		{name: "commit", fn: getCommit},
		{name: "date", fn: getDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			// ldflags, build info or a placeholder
			if tt.fn() == "" {
				t.Errorf("%s is empty", tt.name)
			}
		})
	}
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	res := runCLI(t, "version")
	if res.err != nil {
		t.Fatalf("version: %v", res.err)
	}
	for _, want := range []string{"deltacrawl version " + getVersion(), "commit: ", "built: "} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("output missing %q:\n%s", want, res.stdout)
		}
	}
}
