// Package neural provides the learned energy-proxy backend: a gRPC client to
// the Python sensor-fusion inference service. The service exposes a single
// Predict method taking the normalized feature vector and returning the 0-1
// energy proxy; payloads travel as protobuf well-known values, so no generated
// stubs are required on either side.
package neural

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/vitals"
)

const predictMethod = "/energyproxy.EnergyProxy/Predict"

// invoker is the slice of grpc.ClientConn the client needs. Tests inject a
// fake; production wraps a real connection.
type invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}

// #region client-struct
// Client wraps the gRPC connection to the Python inference service.
type Client struct {
	conn    *grpc.ClientConn
	invoker invoker
	timeout time.Duration
}

// #endregion client-struct

// #region constructor
// NewClient connects to the inference gRPC server. timeout bounds each
// Predict call; the control loop must never stall on a slow model.
func NewClient(addr string, timeout time.Duration) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, invoker: conn, timeout: timeout}, nil
}

// NewClientWithInvoker creates a Client with an injected transport.
// Used for testing without a real gRPC connection.
func NewClientWithInvoker(inv invoker, timeout time.Duration) *Client {
	return &Client{invoker: inv, timeout: timeout}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region predict
// Predict sends the normalized feature vector and returns the model's energy
// proxy estimate.
func (c *Client) Predict(ctx context.Context, features []float64) (float64, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	vals := make([]any, len(features))
	for i, f := range features {
		vals[i] = f
	}
	req, err := structpb.NewList(vals)
	if err != nil {
		return 0, fmt.Errorf("encode features: %w", err)
	}

	var resp structpb.Value
	if err := c.invoker.Invoke(ctx, predictMethod, req, &resp); err != nil {
		return 0, fmt.Errorf("predict rpc: %w", err)
	}
	out, ok := resp.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("predict rpc: non-numeric response %T", resp.GetKind())
	}
	return out.NumberValue, nil
}

// #endregion predict

// #region source
// Source adapts the client to the estimator's energy-proxy interface. It
// normalizes the raw telemetry into the feature layout the model was trained
// on: hydration/100, heart rate/200, SpO2/100, lactate/20, fatigue.
type Source struct {
	client *Client
}

// NewSource wraps a connected client.
func NewSource(client *Client) *Source {
	return &Source{client: client}
}

// EnergyProxy implements estimator.EnergyProxySource. Errors propagate so the
// estimator can fall back to its rule-based source.
func (s *Source) EnergyProxy(m vitals.Telemetry) (float64, error) {
	features := []float64{
		m.HydrationPct / 100.0,
		m.HeartRateBPM / 200.0,
		m.SpO2Pct / 100.0,
		m.LactateMmol / 20.0,
		m.FatigueIdx,
	}
	return s.client.Predict(context.Background(), features)
}

// #endregion source
