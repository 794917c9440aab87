package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/audit"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/estimator"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/loop"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/neural"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/observe"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/telemetry"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/vitals"
)

// #region main
func main() {
	dbPath := flag.String("db", envOr("IV_DB", "adaptive_iv.db"), "path to the audit database")
	listenAddr := flag.String("listen", envOr("IV_LISTEN", ":8080"), "observability API listen address")
	periodMs := flag.Int("period-ms", 200, "control cycle period in milliseconds")
	profilePath := flag.String("profile", "", "patient profile JSON file (default: built-in reference profile)")
	source := flag.String("source", "sim", "telemetry source: sim or mqtt")
	mqttBroker := flag.String("mqtt-broker", envOr("IV_MQTT_BROKER", "tcp://localhost:1883"), "MQTT broker URL")
	mqttTopic := flag.String("mqtt-topic", envOr("IV_MQTT_TOPIC", "sensors/vitals"), "MQTT telemetry topic")
	neuralAddr := flag.String("neural-addr", envOr("IV_NEURAL_ADDR", ""), "energy-proxy inference gRPC address (empty: rule-based)")
	flag.Parse()

	profile := vitals.DefaultProfile()
	if *profilePath != "" {
		data, err := os.ReadFile(*profilePath)
		if err != nil {
			log.Fatalf("read profile: %v", err)
		}
		if err := json.Unmarshal(data, &profile); err != nil {
			log.Fatalf("parse profile: %v", err)
		}
	}

	store, err := audit.NewStore(*dbPath)
	if err != nil {
		log.Fatalf("failed to open audit store: %v", err)
	}
	defer store.Close()

	period := time.Duration(*periodMs) * time.Millisecond

	var src telemetry.Source
	switch *source {
	case "sim":
		src = telemetry.NewSimSource(profile.BaselineHRBPM, period, time.Now().UTC())
	case "mqtt":
		m, err := telemetry.NewMQTTSource(*mqttBroker, "adaptive-iv-controller", *mqttTopic)
		if err != nil {
			log.Fatalf("failed to connect telemetry source: %v", err)
		}
		defer m.Close()
		src = m
	default:
		log.Fatalf("unknown telemetry source %q", *source)
	}

	var proxy estimator.EnergyProxySource
	if *neuralAddr != "" {
		client, err := neural.NewClient(*neuralAddr, 150*time.Millisecond)
		if err != nil {
			log.Fatalf("failed to connect inference service at %s: %v", *neuralAddr, err)
		}
		defer client.Close()
		proxy = neural.NewSource(client)
	}

	runner, err := loop.NewRunner(loop.Config{
		Profile:     profile,
		Source:      src,
		ProxySource: proxy,
		Store:       store,
		Period:      period,
	})
	if err != nil {
		log.Fatalf("failed to start session: %v", err)
	}

	fmt.Println("Adaptive IV Controller ready.")
	fmt.Printf("  Session: %s | DB: %s | API: %s\n", runner.SessionID(), *dbPath, *listenAddr)
	fmt.Printf("  Patient: %.0f kg, %.0f y, baseline HR %.0f\n",
		profile.WeightKg, profile.AgeYears, profile.BaselineHRBPM)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := observe.NewServer(runner)
	httpSrv := &http.Server{Addr: *listenAddr, Handler: api}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server: %v", err)
		}
	}()

	runner.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("api shutdown: %v", err)
	}
}

// #endregion main

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
