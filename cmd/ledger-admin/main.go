package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/content-ledger/pkg/contentledger"
	"github.com/tendant/content-ledger/pkg/contentledger/api"
	"github.com/tendant/content-ledger/pkg/contentledger/config"
	"github.com/tendant/content-ledger/pkg/contentledger/snapshot"
)

const usage = `Content Ledger Admin CLI

Offline maintenance for the content ledger. It talks to the journal and the
snapshot store directly, so stop the server before running import.

USAGE:
  ledger-admin <command> [options]

COMMANDS:
  stats       Rebuild the ledger and print its counters
  verify      Rebuild the ledger and check derived state against the journal
  export      Write a snapshot of the journal to the snapshot store
  import      Restore a snapshot into an empty journal
  snapshots   List snapshot keys
  prune       Delete all but the newest --keep snapshots
  token       Issue a caller token for the HTTP API

ENVIRONMENT VARIABLES (prefix LEDGER_ by default, see LEDGER_ENV_PREFIX):
  DATABASE_URL      memory, postgres://..., or sqlite:///path/to/ledger.db
  DB_SCHEMA         PostgreSQL schema name (default: ledger)
  SNAPSHOT_URL      memory://, file:///path, or s3://bucket?region=...
  JWT_SECRET        HS256 secret shared with the server (token only)

  Configuration can be loaded from a .env file in the current directory.

OPTIONS:
  --key=<key>       Snapshot key (export: optional, import: defaults to latest)
  --keep=<n>        Snapshots to retain (prune only)
  --sub=<identity>  Token subject (token only)
  --admin           Grant admin privileges (token only)
  --json            Output as JSON
`

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage + "\n")
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" || command == "--help" || command == "-h" {
		fmt.Print(usage + "\n")
		os.Exit(0)
	}

	prefix := "LEDGER_"
	if v, ok := os.LookupEnv("LEDGER_ENV_PREFIX"); ok {
		prefix = v
	}
	cfg, err := config.Load(config.WithEnv(prefix))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	opts := parseOptions(os.Args[2:])
	ctx := context.Background()

	switch command {
	case "stats":
		err = handleStats(ctx, cfg, opts)
	case "verify":
		err = handleVerify(ctx, cfg, opts)
	case "export":
		err = handleExport(ctx, cfg, opts)
	case "import":
		err = handleImport(ctx, cfg, opts)
	case "snapshots":
		err = handleSnapshots(ctx, cfg, opts)
	case "prune":
		err = handlePrune(ctx, cfg, opts)
	case "token":
		err = handleToken(cfg, opts)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage + "\n")
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

type options struct {
	key     string
	sub     string
	keep    int
	admin   bool
	useJSON bool
}

func parseOptions(args []string) options {
	var opts options
	for _, arg := range args {
		key, value := parseFlag(arg)
		switch key {
		case "json":
			opts.useJSON = true
		case "admin":
			opts.admin = true
		case "key":
			opts.key = value
		case "sub":
			opts.sub = value
		case "keep":
			opts.keep, _ = strconv.Atoi(value)
		}
	}
	return opts
}

func parseFlag(arg string) (string, string) {
	arg = strings.TrimLeft(arg, "-")
	if i := strings.Index(arg, "="); i >= 0 {
		return arg[:i], arg[i+1:]
	}
	return arg, ""
}

func handleStats(ctx context.Context, cfg *config.ServerConfig, opts options) error {
	svc, closeRepo, err := cfg.BuildService(ctx, contentledger.WithEventSink(contentledger.NewNoopEventSink()))
	if err != nil {
		return err
	}
	defer closeRepo()

	stats, err := svc.GetStats(ctx)
	if err != nil {
		return err
	}

	if opts.useJSON {
		return printJSON(stats)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Contents:\t%d\n", stats.ContentCount)
	fmt.Fprintf(w, "Payments:\t%d\n", stats.PaymentCount)
	fmt.Fprintf(w, "Total revenue:\t%d\n", stats.TotalRevenue)
	return w.Flush()
}

func handleVerify(ctx context.Context, cfg *config.ServerConfig, opts options) error {
	svc, closeRepo, err := cfg.BuildService(ctx, contentledger.WithEventSink(contentledger.NewNoopEventSink()))
	if err != nil {
		return err
	}
	defer closeRepo()

	verifyErr := svc.Verify(ctx)
	if opts.useJSON {
		result := map[string]string{"status": "consistent"}
		if verifyErr != nil {
			result = map[string]string{"status": "corrupted", "error": verifyErr.Error()}
		}
		if err := printJSON(result); err != nil {
			return err
		}
	} else if verifyErr == nil {
		fmt.Println("Ledger is consistent")
	}
	return verifyErr
}

func handleExport(ctx context.Context, cfg *config.ServerConfig, opts options) error {
	svc, closeRepo, err := cfg.BuildService(ctx, contentledger.WithEventSink(contentledger.NewNoopEventSink()))
	if err != nil {
		return err
	}
	defer closeRepo()

	store, err := cfg.BuildSnapshotStore()
	if err != nil {
		return err
	}

	key := opts.key
	if key == "" {
		key = snapshot.NewKey(cfg.Snapshot.Prefix, time.Now())
	}
	key, err = snapshot.Export(ctx, svc, store, key)
	if err != nil {
		return err
	}

	if opts.useJSON {
		return printJSON(map[string]string{"key": key})
	}
	fmt.Printf("Snapshot written to %s\n", key)
	return nil
}

func handleImport(ctx context.Context, cfg *config.ServerConfig, opts options) error {
	store, err := cfg.BuildSnapshotStore()
	if err != nil {
		return err
	}

	key := opts.key
	if key == "" {
		key, err = snapshot.Latest(ctx, store, cfg.Snapshot.Prefix)
		if snapshot.IsNotFound(err) {
			return fmt.Errorf("no snapshots under %q", cfg.Snapshot.Prefix)
		}
		if err != nil {
			return err
		}
	}

	repo, closeRepo, err := cfg.BuildRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc, err := snapshot.Restore(ctx, store, key, repo, contentledger.WithEventSink(contentledger.NewNoopEventSink()))
	if err != nil {
		return err
	}

	stats, err := svc.GetStats(ctx)
	if err != nil {
		return err
	}
	if opts.useJSON {
		return printJSON(map[string]interface{}{"key": key, "stats": stats})
	}
	fmt.Printf("Restored %s: %d contents, %d payments\n", key, stats.ContentCount, stats.PaymentCount)
	return nil
}

func handleSnapshots(ctx context.Context, cfg *config.ServerConfig, opts options) error {
	store, err := cfg.BuildSnapshotStore()
	if err != nil {
		return err
	}

	keys, err := store.List(ctx, cfg.Snapshot.Prefix)
	if err != nil {
		return err
	}
	if opts.useJSON {
		return printJSON(keys)
	}
	for _, key := range keys {
		fmt.Println(key)
	}
	return nil
}

func handlePrune(ctx context.Context, cfg *config.ServerConfig, opts options) error {
	if opts.keep <= 0 {
		return fmt.Errorf("--keep must be a positive number")
	}
	store, err := cfg.BuildSnapshotStore()
	if err != nil {
		return err
	}

	deleted, err := snapshot.Prune(ctx, store, cfg.Snapshot.Prefix, opts.keep)
	if opts.useJSON {
		if jsonErr := printJSON(map[string]interface{}{"deleted": deleted}); jsonErr != nil {
			return jsonErr
		}
	} else {
		for _, key := range deleted {
			fmt.Printf("Deleted %s\n", key)
		}
	}
	return err
}

func handleToken(cfg *config.ServerConfig, opts options) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	caller := contentledger.Identity(opts.sub)
	if caller.IsAnonymous() {
		return fmt.Errorf("--sub is required")
	}

	var extra map[string]interface{}
	if opts.admin {
		extra = map[string]interface{}{"admin": true}
	}
	token, err := api.IssueToken(api.NewJWTAuth(cfg.JWTSecret), caller, extra)
	if err != nil {
		return err
	}

	if opts.useJSON {
		return printJSON(map[string]string{"token": token})
	}
	fmt.Println(token)
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
