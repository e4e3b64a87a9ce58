// Replay prints the intent audit journal in human-readable form. It is a
// forensics tool: filter a day of traffic down to one player or one action
// and see exactly what the server decided.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	persistlog "tilecraft.gg/internal/persistence/log"
)

func main() {
	var (
		dataDir  = flag.String("data", "./data", "runtime data directory")
		file     = flag.String("file", "", "journal file to read (default: every audit-*.jsonl.zst under <data>/audit)")
		player   = flag.Int("player", 0, "filter by player id (0 = all)")
		action   = flag.String("action", "", "filter by action type (empty = all)")
		rejected = flag.Bool("rejected", false, "show only rejected intents")
	)
	flag.Parse()

	files := []string{*file}
	if *file == "" {
		matches, err := filepath.Glob(filepath.Join(*dataDir, "audit", "audit-*.jsonl.zst"))
		if err != nil || len(matches) == 0 {
			fmt.Fprintln(os.Stderr, "no journal files found")
			os.Exit(1)
		}
		sort.Strings(matches)
		files = matches
	}

	shown, total := 0, 0
	for _, path := range files {
		entries, err := persistlog.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
			os.Exit(1)
		}
		for _, e := range entries {
			total++
			if *player != 0 && e.PlayerID != *player {
				continue
			}
			if *action != "" && e.Action != *action {
				continue
			}
			if *rejected && e.Accepted {
				continue
			}
			shown++
			printEntry(e)
		}
	}
	fmt.Fprintf(os.Stderr, "%d of %d entries shown\n", shown, total)
}

func printEntry(e persistlog.Entry) {
	ts := time.UnixMilli(e.TimeMs).UTC().Format("2006-01-02 15:04:05.000")
	verdict := "ok"
	if !e.Accepted {
		verdict = "rejected"
		if e.Reason != "" {
			verdict += " (" + e.Reason + ")"
		}
	}
	fmt.Printf("%s  player=%-4d %-16s (%2d,%2d)  %s\n", ts, e.PlayerID, e.Action, e.X, e.Y, verdict)
}
