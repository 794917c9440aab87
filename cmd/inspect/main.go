package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/audit"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the audit database")
	last := flag.Int("last", 20, "show N most recent sessions")
	sessionID := flag.String("session", "", "show per-cycle detail for one session")
	tail := flag.Int("tail", 10, "with --session, show the last N cycles")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/adaptive_iv.db [--last N] [--session id [--tail N]] [--json]")
		os.Exit(2)
	}

	store, err := audit.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *sessionID != "" {
		err = runDetailMode(store, *sessionID, *tail, *jsonOut)
	} else {
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

func runListMode(store *audit.Store, last int, jsonOut bool) error {
	sessions, err := store.ListSessions(last)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(os.Stderr, "no sessions found")
		return nil
	}

	if jsonOut {
		return printJSON(sessions)
	}

	fmt.Printf("%-10s  %-20s  %-10s  %8s  %7s  %7s\n",
		"Session", "Started", "Proxy", "Period", "Weight", "Ended")
	for _, s := range sessions {
		ended := "open"
		if !s.EndedAt.IsZero() {
			ended = "closed"
		}
		fmt.Printf("%-10s  %-20s  %-10s  %6dms  %5.0fkg  %7s\n",
			shortID(s.SessionID), s.StartedAt.Format("2006-01-02T15:04:05Z"),
			s.ProxySource, s.PeriodMs, s.Profile.WeightKg, ended)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

func runDetailMode(store *audit.Store, sessionID string, tail int, jsonOut bool) error {
	session, err := store.GetSession(sessionID)
	if err != nil {
		return err
	}
	cycles, err := store.GetCycles(sessionID)
	if err != nil {
		return err
	}
	if len(cycles) > tail {
		cycles = cycles[len(cycles)-tail:]
	}

	if jsonOut {
		return printJSON(map[string]any{"session": session, "cycles": cycles})
	}

	fmt.Printf("Session: %s\n", session.SessionID)
	fmt.Printf("Started: %s\n", session.StartedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Proxy:   %s\n", session.ProxySource)
	fmt.Printf("Patient: %.0f kg, %.0f y\n\n", session.Profile.WeightKg, session.Profile.AgeYears)

	fmt.Printf("%6s  %8s  %8s  %6s  %6s  %6s  %s\n",
		"Cycle", "Hydr%", "Rate", "Conf", "Risk", "C_res", "Warnings")
	for _, c := range cycles {
		warnings := c.Output.WarningFlags
		if warnings == "" {
			warnings = "-"
		}
		fmt.Printf("%6d  %8.2f  %8.3f  %6.2f  %6.2f  %6.2f  %s\n",
			c.Cycle, c.State.HydrationPct, c.Output.InfusionMlPerMin,
			c.Output.Confidence, c.State.RiskScore, c.State.CardiacReserve, warnings)
	}
	return nil
}

// #endregion detail-mode

// #region output

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
