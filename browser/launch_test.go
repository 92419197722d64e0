package browser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
)

func TestLaunchFailureRemovesUserDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "user-data")
	if err := os.MkdirAll(filepath.Join(dir, "Default"), 0o755); err != nil {
		t.Fatal(err)
	}

	ln := launcher.New().
		Leakless(false).
		Bin(filepath.Join(t.TempDir(), "no-such-chrome")).
		UserDataDir(dir)
	if got := ln.Get(flags.UserDataDir); got != dir {
		t.Fatalf("user data dir = %q, want %q", got, dir)
	}

	if _, err := launch(ln); err == nil {
		t.Fatal("expected launch to fail for a missing binary")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("user data dir still present after failed launch: %v", err)
	}
}
