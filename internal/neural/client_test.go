package neural

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/vitals"
)

// fakeInvoker records the last call and replies with a canned value.
type fakeInvoker struct {
	method   string
	features []float64
	reply    float64
	err      error
}

func (f *fakeInvoker) Invoke(_ context.Context, method string, args, reply any, _ ...grpc.CallOption) error {
	f.method = method
	if list, ok := args.(*structpb.ListValue); ok {
		f.features = f.features[:0]
		for _, v := range list.Values {
			f.features = append(f.features, v.GetNumberValue())
		}
	}
	if f.err != nil {
		return f.err
	}
	if v, ok := reply.(*structpb.Value); ok {
		v.Kind = &structpb.Value_NumberValue{NumberValue: f.reply}
	}
	return nil
}

func TestPredict(t *testing.T) {
	fake := &fakeInvoker{reply: 0.63}
	c := NewClientWithInvoker(fake, time.Second)

	got, err := c.Predict(context.Background(), []float64{0.8, 0.375, 0.98, 0.075, 0.2})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if got != 0.63 {
		t.Fatalf("predict = %v, want 0.63", got)
	}
	if fake.method != predictMethod {
		t.Fatalf("method = %q, want %q", fake.method, predictMethod)
	}
	if len(fake.features) != 5 {
		t.Fatalf("feature count = %d, want 5", len(fake.features))
	}
}

func TestPredictError(t *testing.T) {
	fake := &fakeInvoker{err: errors.New("unavailable")}
	c := NewClientWithInvoker(fake, time.Second)
	if _, err := c.Predict(context.Background(), []float64{0.5}); err == nil {
		t.Fatal("expected error from failing transport")
	}
}

func TestSourceNormalization(t *testing.T) {
	fake := &fakeInvoker{reply: 0.5}
	src := NewSource(NewClientWithInvoker(fake, time.Second))

	m := vitals.Telemetry{
		HydrationPct: 80,
		HeartRateBPM: 75,
		SpO2Pct:      98,
		LactateMmol:  1.5,
		FatigueIdx:   0.2,
	}
	if _, err := src.EnergyProxy(m); err != nil {
		t.Fatalf("energy proxy: %v", err)
	}

	want := []float64{0.8, 0.375, 0.98, 0.075, 0.2}
	if len(fake.features) != len(want) {
		t.Fatalf("feature count = %d, want %d", len(fake.features), len(want))
	}
	for i := range want {
		if fake.features[i] != want[i] {
			t.Fatalf("feature %d = %v, want %v", i, fake.features[i], want[i])
		}
	}
}
