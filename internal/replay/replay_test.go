package replay

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/audit"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/loop"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/telemetry"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/vitals"
)

func recordSession(t *testing.T, cycles int) (*audit.Store, string) {
	t.Helper()
	store, err := audit.NewStore(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	epoch := time.Unix(1700000000, 0).UTC()
	r, err := loop.NewRunner(loop.Config{
		Profile: vitals.DefaultProfile(),
		Source:  telemetry.NewSimSource(70, loop.DefaultPeriod, epoch),
		Store:   store,
		Period:  loop.DefaultPeriod,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	for i := 0; i < cycles; i++ {
		r.RunCycle()
	}
	return store, r.SessionID()
}

func TestVerifyRecordedSession(t *testing.T) {
	store, id := recordSession(t, 60)

	summary, err := Verify(store, id)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if summary.Cycles != 60 {
		t.Errorf("cycles = %d, want 60", summary.Cycles)
	}
	if !summary.Identical() {
		for _, m := range summary.Mismatches {
			t.Errorf("cycle %d %s:\n recorded   %s\n recomputed %s",
				m.Cycle, m.Field, m.Recorded, m.Recomputed)
		}
		t.Fatalf("%d mismatches in a clean recording", len(summary.Mismatches))
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	store, id := recordSession(t, 10)

	// Corrupt one recorded decision directly in the store.
	_, err := store.DB().Exec(
		`UPDATE control_log SET output_json = replace(output_json, '"infusion_ml_per_min":', '"infusion_ml_per_min":9')
		 WHERE session_id = ? AND cycle = 5`, id)
	if err != nil {
		t.Fatalf("tamper: %v", err)
	}

	summary, err := Verify(store, id)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if summary.Identical() {
		t.Fatal("tampered recording verified as identical")
	}
	found := false
	for _, m := range summary.Mismatches {
		if m.Cycle == 5 && m.Field == "output" {
			found = true
		}
	}
	if !found {
		t.Fatalf("mismatch at cycle 5 not reported: %+v", summary.Mismatches)
	}
}

func TestVerifyUnknownSession(t *testing.T) {
	store, _ := recordSession(t, 1)
	if _, err := Verify(store, "no-such-session"); err == nil {
		t.Fatal("expected error for unknown session")
	}
}
