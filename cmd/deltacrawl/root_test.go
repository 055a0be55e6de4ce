package main

import (
	"strings"
	"testing"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "deltacrawl" {
			t.Errorf("expected use 'deltacrawl', got %q", cmd.Use)
		}
	})

	t.Run("has version", func(t *testing.T) {
		t.Parallel()
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has persistent flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"verbose", "log-format", "db-dir", "config"} {
			if cmd.PersistentFlags().Lookup(name) == nil {
				t.Errorf("expected --%s flag", name)
			}
		}
		if got := cmd.PersistentFlags().Lookup("db-dir").DefValue; !strings.HasSuffix(got, "deltacrawl") {
			t.Errorf("db-dir default = %q, want the XDG data directory", got)
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		want := map[string]bool{"crawl": false, "watch": false, "history": false, "init": false, "version": false}
		for _, sub := range cmd.Commands() {
			if _, ok := want[sub.Name()]; ok {
				want[sub.Name()] = true
			}
		}
		for name, found := range want {
			if !found {
				t.Errorf("expected %s subcommand", name)
			}
		}
	})

	t.Run("silences usage and errors", func(t *testing.T) {
		t.Parallel()
		if !cmd.SilenceUsage {
			t.Error("expected SilenceUsage to be true")
		}
		if !cmd.SilenceErrors {
			t.Error("expected SilenceErrors to be true")
		}
	})
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()

	res := runCLI(t, "scan", "example")
	if res.err == nil || !strings.Contains(res.err.Error(), "unknown command") {
		t.Errorf("error = %v, want unknown command", res.err)
	}
}
