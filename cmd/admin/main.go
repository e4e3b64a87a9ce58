// Admin is an operator CLI for a running or stopped server: inspect the
// state file, list the save index, and restore a compressed backup.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"tilecraft.gg/internal/mapgen"
	"tilecraft.gg/internal/persistence/archive"
	"tilecraft.gg/internal/persistence/indexdb"
	"tilecraft.gg/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "state":
			stateCmd(os.Args[2:])
			return
		case "saves":
			savesCmd(os.Args[2:])
			return
		case "backups":
			backupsCmd(os.Args[2:])
			return
		case "restore":
			restoreCmd(os.Args[2:])
			return
		case "health":
			healthCmd(os.Args[2:])
			return
		case "reset":
			resetCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin <state|saves|backups|restore|health|reset> [flags]")
	os.Exit(2)
}

// stateCmd summarizes the state file after the same repair pass the server
// applies on load.
func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	st, err := snapshot.Read(filepath.Join(*dataDir, "state.json"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read state:", err)
		os.Exit(1)
	}
	st = snapshot.Sanitize(st)

	fmt.Printf("seed:        %d\n", st.MapSeed)
	fmt.Printf("players:     %d (next id %d)\n", len(st.Players), st.NextPlayerID)
	fmt.Printf("blocks:      %d\n", len(st.Blocks))
	fmt.Printf("harvested:   %d\n", len(st.Harvested))
	fmt.Printf("spawned:     %d\n", len(st.Spawned))

	counts := mapgen.Generate(st.MapSeed).Counts()
	fmt.Printf("base layout: open=%d wood=%d stone=%d gold=%d diamond=%d\n",
		counts[mapgen.Open], counts[mapgen.Wood], counts[mapgen.Stone],
		counts[mapgen.Gold], counts[mapgen.Diamond])
}

func savesCmd(args []string) {
	fs := flag.NewFlagSet("saves", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	n := fs.Int("n", 20, "number of saves to list")
	_ = fs.Parse(args)

	ix, err := indexdb.Open(filepath.Join(*dataDir, "index.db"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open index:", err)
		os.Exit(1)
	}
	defer ix.Close()

	recs, err := ix.Recent(*n)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query index:", err)
		os.Exit(1)
	}
	for _, r := range recs {
		fmt.Printf("%s  %-14s players=%d/%d blocks=%d harvested=%d spawned=%d seed=%d %dB\n",
			r.Time.UTC().Format(time.RFC3339), r.Reason,
			r.ActivePlayers, r.Players, r.Blocks, r.Harvested, r.Spawned, r.Seed, r.Bytes)
	}
}

func backupsCmd(args []string) {
	fs := flag.NewFlagSet("backups", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	dir := filepath.Join(*dataDir, "backups")
	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read backups:", err)
		os.Exit(1)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Println(filepath.Join(dir, name))
	}
}

// restoreCmd replaces the state file with a backup's contents. Run it only
// against a stopped server; the running process overwrites state.json on its
// next save.
func restoreCmd(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	backup := fs.String("backup", "", "backup file to restore (required)")
	_ = fs.Parse(args)

	if *backup == "" {
		fmt.Fprintln(os.Stderr, "missing -backup")
		os.Exit(2)
	}
	b, err := archive.ReadBackup(*backup)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read backup:", err)
		os.Exit(1)
	}
	statePath := filepath.Join(*dataDir, "state.json")
	if err := snapshot.WriteBytes(statePath, b); err != nil {
		fmt.Fprintln(os.Stderr, "write state:", err)
		os.Exit(1)
	}
	fmt.Printf("restored %s from %s (%d bytes)\n", statePath, *backup, len(b))
}

func healthCmd(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:3000", "server base url")
	_ = fs.Parse(args)

	resp, err := http.Get(*addr + "/healthz")
	if err != nil {
		fmt.Fprintln(os.Stderr, "health:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		fmt.Fprintln(os.Stderr, "decode:", err)
		os.Exit(1)
	}
	out, _ := json.MarshalIndent(body, "", "  ")
	fmt.Println(string(out))
}

func resetCmd(args []string) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:3000", "server base url")
	_ = fs.Parse(args)

	resp, err := http.Post(*addr+"/reset", "application/json", nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "reset:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintln(os.Stderr, "reset: http", resp.StatusCode)
		os.Exit(1)
	}
	fmt.Println("world reset")
}
