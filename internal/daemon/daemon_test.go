package daemon

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/omnibrain/omnibrain/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	return cfg
}

func TestNewResourceContainer_WiresCoreSubsystems(t *testing.T) {
	rc, err := NewResourceContainer(testConfig(t), slog.Default())
	if err != nil {
		t.Fatalf("NewResourceContainer: %v", err)
	}
	defer rc.Close()

	if rc.Store == nil {
		t.Error("expected Store to be wired")
	}
	if rc.Memory == nil {
		t.Error("expected Memory to be wired")
	}
	if rc.Knowledge == nil {
		t.Error("expected Knowledge to be wired when Memory succeeds")
	}
	if rc.Briefing == nil {
		t.Error("expected Briefing to be wired")
	}
	if rc.SkillRuntime == nil {
		t.Error("expected SkillRuntime to be wired")
	}
	if rc.Secure != nil {
		t.Error("expected Secure to stay nil without an encryption key configured")
	}
}

func TestNewResourceContainer_WiresSecureStorageWhenKeyPresent(t *testing.T) {
	cfg := testConfig(t)
	cfg.Encryption.Key = "test-passphrase"
	rc, err := NewResourceContainer(cfg, slog.Default())
	if err != nil {
		t.Fatalf("NewResourceContainer: %v", err)
	}
	defer rc.Close()

	if rc.Secure == nil {
		t.Error("expected Secure to be wired when an encryption key is configured")
	}
}

func TestDaemon_RunAndShutdown(t *testing.T) {
	d := New(testConfig(t), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	// Let subsystems spin up, then request shutdown.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not shut down within timeout")
	}

	if d.Resources() == nil {
		t.Error("expected Resources() to be non-nil after Run")
	}
}
