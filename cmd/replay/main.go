package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/audit"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/replay"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the audit database")
	sessionID := flag.String("session", "", "session to verify (default: most recent)")
	verbose := flag.Bool("v", false, "print every mismatch in full")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/adaptive_iv.db [--session id] [-v]")
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

	summary, err := replay.Verify(store, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Session:    %s\n", summary.SessionID)
	fmt.Printf("Cycles:     %d\n", summary.Cycles)
	fmt.Printf("Mismatches: %d\n", len(summary.Mismatches))

	if summary.Identical() {
		fmt.Println("Result:     IDENTICAL")
		return
	}

	fmt.Println("Result:     DIVERGED")
	if *verbose {
		for _, m := range summary.Mismatches {
			fmt.Printf("\ncycle %d (%s):\n  recorded   %s\n  recomputed %s\n",
				m.Cycle, m.Field, m.Recorded, m.Recomputed)
		}
	} else {
		limit := len(summary.Mismatches)
		if limit > 5 {
			limit = 5
		}
		for _, m := range summary.Mismatches[:limit] {
			fmt.Printf("  cycle %d: %s differs\n", m.Cycle, m.Field)
		}
		if len(summary.Mismatches) > limit {
			fmt.Printf("  ... %d more (use -v)\n", len(summary.Mismatches)-limit)
		}
	}
	os.Exit(1)
}

// #endregion main
