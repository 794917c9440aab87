package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/audit"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the audit database")
	sessionID := flag.String("session", "", "session to export (default: most recent)")
	outPrefix := flag.String("out", "ai_iv", "output file prefix")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: export --db path/to/adaptive_iv.db [--session id] [--out prefix]")
		os.Exit(2)
	}

	store, err := audit.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	id := *sessionID
	if id == "" {
		sessions, err := store.ListSessions(1)
		if err != nil || len(sessions) == 0 {
			fmt.Fprintln(os.Stderr, "no sessions found")
			os.Exit(1)
		}
		id = sessions[0].SessionID
	}

	telPath := fmt.Sprintf("%s_%s_telemetry.csv", *outPrefix, id)
	ctlPath := fmt.Sprintf("%s_%s_control.csv", *outPrefix, id)

	if err := exportTo(telPath, func(f *os.File) error { return store.ExportTelemetryCSV(id, f) }); err != nil {
		fmt.Fprintf(os.Stderr, "export telemetry: %v\n", err)
		os.Exit(1)
	}
	if err := exportTo(ctlPath, func(f *os.File) error { return store.ExportControlCSV(id, f) }); err != nil {
		fmt.Fprintf(os.Stderr, "export control: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Exported session %s:\n  %s\n  %s\n", id, telPath, ctlPath)
}

func exportTo(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// #endregion main
