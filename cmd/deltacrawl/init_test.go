package main

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/nao1215/deltacrawl/internal/config"
)

// TestNewInitCmd tests the init command creation.
func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()

	t.Run("has output flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("output")
		if flag == nil {
			t.Fatal("expected output flag")
		}
		if flag.Shorthand != "o" {
			t.Errorf("expected shorthand 'o', got %q", flag.Shorthand)
		}
		if flag.DefValue != configFileName {
			t.Errorf("expected default %q, got %q", configFileName, flag.DefValue)
		}
	})

	t.Run("has force flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("force")
		if flag == nil {
			t.Fatal("expected force flag")
		}
		if flag.Shorthand != "f" {
			t.Errorf("expected shorthand 'f', got %q", flag.Shorthand)
		}
	})
}

// TestRunInitCmd tests the init command execution.
func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates a loadable config file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "nested", "deltacrawl.yaml")

		res := runCLI(t, "init", "-o", path)
		if res.err != nil {
			t.Fatalf("init: %v", res.err)
		}
		if !strings.Contains(res.stdout, "Created configuration file: "+path) {
			t.Errorf("unexpected output:\n%s", res.stdout)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("permissions = %o, want 600", perm)
		}

		file, err := config.LoadConfigFile(path)
		if err != nil {
			t.Fatalf("template does not load: %v", err)
		}
		if !slices.Contains(file.Defaults.IgnorePatterns, "node_modules") {
			t.Errorf("ignore patterns = %v", file.Defaults.IgnorePatterns)
		}
		if file.Defaults.MaxDepth != config.DefaultMaxDepth {
			t.Errorf("maxDepth = %v, want %d", file.Defaults.MaxDepth, config.DefaultMaxDepth)
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), ".deltacrawl")
		if err := os.WriteFile(path, []byte("# mine\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		res := runCLI(t, "init", "-o", path)
		if res.err == nil || !strings.Contains(res.err.Error(), "already exists") {
			t.Fatalf("error = %v, want already exists", res.err)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(content) != "# mine\n" {
			t.Error("existing file was modified")
		}
	})

	t.Run("force overwrites", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), ".deltacrawl")
		if err := os.WriteFile(path, []byte("# mine\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		if res := runCLI(t, "init", "-f", "-o", path); res.err != nil {
			t.Fatalf("init: %v", res.err)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(content), "ignorePatterns") {
			t.Errorf("file was not replaced:\n%s", content)
		}
	})
}
