package main

import (
	"flag"
	"path/filepath"
	"testing"
	"time"
)

func loadFlags(t *testing.T, args ...string) time.Duration {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	common := registerCommonFlags(fs)

	base := []string{"-folder", "root", "-api-key", testAPIKey, "-env-file", filepath.Join(t.TempDir(), "missing.env")}
	if err := fs.Parse(append(base, args...)); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := common.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return cfg.Delay
}

func TestDelayFlag(t *testing.T) {
	clearEnv(t)
	t.Setenv("DRIVEFETCH_DELAY", "")

	if got := loadFlags(t); got != 100*time.Millisecond {
		t.Errorf("default delay = %v, want 100ms", got)
	}
	if got := loadFlags(t, "-delay", "0"); got != 0 {
		t.Errorf("delay with -delay 0 = %v, want 0", got)
	}
	if got := loadFlags(t, "-delay", "250ms"); got != 250*time.Millisecond {
		t.Errorf("delay = %v, want 250ms", got)
	}
}
