package telemetry

import (
	"testing"
	"time"
)

func TestSimSourceDeterministic(t *testing.T) {
	epoch := time.Unix(1700000000, 0).UTC()
	a := NewSimSource(70, 200*time.Millisecond, epoch)
	b := NewSimSource(70, 200*time.Millisecond, epoch)
	for i := 0; i < 50; i++ {
		ma, _ := a.Next()
		mb, _ := b.Next()
		if ma != mb {
			t.Fatalf("cycle %d: streams diverge:\n%+v\n%+v", i, ma, mb)
		}
	}
}

func TestSimSourceRanges(t *testing.T) {
	s := NewSimSource(70, time.Second, time.Unix(1700000000, 0).UTC())
	for i := 0; i < 500; i++ {
		m, ok := s.Next()
		if !ok {
			t.Fatal("sim source reported no sample")
		}
		if m.HydrationPct < 50 || m.HydrationPct > 80 {
			t.Fatalf("cycle %d: hydration %v outside sinusoid envelope", i, m.HydrationPct)
		}
		if m.HeartRateBPM < 50 || m.HeartRateBPM > 90 {
			t.Fatalf("cycle %d: heart rate %v outside sinusoid envelope", i, m.HeartRateBPM)
		}
		if m.SignalQuality < 0.75 || m.SignalQuality > 0.95 {
			t.Fatalf("cycle %d: signal quality %v outside envelope", i, m.SignalQuality)
		}
		if m.BloodLossIdx != 0 {
			t.Fatalf("cycle %d: simulated blood loss %v, want 0", i, m.BloodLossIdx)
		}
	}
}

func TestSimSourceTimestamps(t *testing.T) {
	epoch := time.Unix(1700000000, 0).UTC()
	s := NewSimSource(70, 200*time.Millisecond, epoch)
	m0, _ := s.Next()
	m1, _ := s.Next()
	if !m0.Timestamp.Equal(epoch) {
		t.Fatalf("first timestamp = %v, want %v", m0.Timestamp, epoch)
	}
	if got := m1.Timestamp.Sub(m0.Timestamp); got != 200*time.Millisecond {
		t.Fatalf("timestamp step = %v, want 200ms", got)
	}
}
