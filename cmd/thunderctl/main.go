package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/tuannm99/thunder"
	"github.com/tuannm99/thunder/internal/thunderconfig"
)

const version = "thunderctl 0.1"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "thunder.yaml", "path to thunderctl yaml config")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: thunderctl -config <path> <command> [args...]")
		fmt.Fprintln(os.Stderr, "commands: open put get delete bucket checkpoint version repl")
		os.Exit(1)
	}

	if args[0] == "version" {
		fmt.Println(version)
		return
	}

	opts, err := loadOptions(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	db, err := thunder.OpenWithOptions(opts.path, opts.Options)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, rest := args[0], args[1:]
	if cmd == "repl" {
		runRepl(ctx, db)
		return
	}

	if err := dispatch(db, cmd, rest); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// dbOptions pairs thunder.Options with the file path the config named,
// since OpenWithOptions takes the two separately.
type dbOptions struct {
	thunder.Options
	path string
}

func loadOptions(cfgPath string) (dbOptions, error) {
	if _, err := os.Stat(cfgPath); err != nil {
		return dbOptions{Options: thunder.DefaultOptions("thunder.db"), path: "thunder.db"}, nil
	}
	cfg, err := thunderconfig.Load(cfgPath)
	if err != nil {
		return dbOptions{}, err
	}
	opts, err := thunder.OptionsFromConfig(cfg)
	if err != nil {
		return dbOptions{}, err
	}
	path := cfg.Database.File
	if path == "" {
		path = "thunder.db"
	}
	return dbOptions{Options: opts, path: path}, nil
}

// dispatch runs a single command against an already-open database,
// committing or aborting the write transaction it opens (if any) before
// returning.
func dispatch(db *thunder.Database, cmd string, args []string) error {
	switch cmd {
	case "open":
		r := db.ReadTx()
		fmt.Printf("ok, %d entries\n", len(r.Iter()))
		return nil

	case "put":
		if len(args) != 2 {
			return fmt.Errorf("usage: put <key> <value>")
		}
		w := db.WriteTx()
		if err := w.Put([]byte(args[0]), []byte(args[1])); err != nil {
			db.Abort(w)
			return err
		}
		return db.Commit(w)

	case "get":
		if len(args) != 1 {
			return fmt.Errorf("usage: get <key>")
		}
		r := db.ReadTx()
		v, ok := r.Get([]byte(args[0]))
		if !ok {
			return fmt.Errorf("key not found")
		}
		fmt.Println(string(v))
		return nil

	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("usage: delete <key>")
		}
		w := db.WriteTx()
		if err := w.Delete([]byte(args[0])); err != nil {
			db.Abort(w)
			return err
		}
		return db.Commit(w)

	case "bucket":
		return dispatchBucket(db, args)

	case "checkpoint":
		return db.Checkpoint()

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func dispatchBucket(db *thunder.Database, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: bucket <create|delete|list|put|get> [args...]")
	}
	switch args[0] {
	case "create":
		if len(args) != 2 {
			return fmt.Errorf("usage: bucket create <name>")
		}
		w := db.WriteTx()
		if err := w.CreateBucket(args[1]); err != nil {
			db.Abort(w)
			return err
		}
		return db.Commit(w)

	case "delete":
		if len(args) != 2 && len(args) != 3 {
			return fmt.Errorf("usage: bucket delete <name> [cascade]")
		}
		cascade := len(args) == 3 && args[2] == "cascade"
		w := db.WriteTx()
		if err := w.DeleteBucket(args[1], cascade); err != nil {
			db.Abort(w)
			return err
		}
		return db.Commit(w)

	case "list":
		r := db.ReadTx()
		for _, name := range r.ListBuckets() {
			fmt.Println(name)
		}
		return nil

	case "put":
		if len(args) != 4 {
			return fmt.Errorf("usage: bucket put <name> <key> <value>")
		}
		w := db.WriteTx()
		if err := w.BucketPut(args[1], []byte(args[2]), []byte(args[3])); err != nil {
			db.Abort(w)
			return err
		}
		return db.Commit(w)

	case "get":
		if len(args) != 3 {
			return fmt.Errorf("usage: bucket get <name> <key>")
		}
		r := db.ReadTx()
		v, ok, err := r.BucketGet(args[1], []byte(args[2]))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("key not found")
		}
		fmt.Println(string(v))
		return nil

	default:
		return fmt.Errorf("unknown bucket subcommand %q", args[0])
	}
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".thunderctl_history"
	}
	return filepath.Join(home, ".thunderctl_history")
}

// runRepl drives an interactive session over db until EOF, Ctrl+D, or
// "quit"/"exit", reusing the process's own open database rather than
// dialing out to a server.
func runRepl(ctx context.Context, db *thunder.Database) {
	histPath := defaultHistoryPath()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "thunder> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		HistoryFile:     histPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	fmt.Println("connected, type \\help for help")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			fmt.Println("^C")
			continue
		}
		if err != nil {
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "\\q" || line == "quit" || line == "exit" {
			return
		}
		if line == "\\help" {
			fmt.Println(`commands:
  put <key> <value>
  get <key>
  delete <key>
  bucket create|delete|list|put|get ...
  checkpoint
  quit | exit | \q`)
			continue
		}

		fields := splitFields(line)
		if len(fields) == 0 {
			continue
		}
		if err := dispatch(db, fields[0], fields[1:]); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

// splitFields tokenizes a REPL line, honoring single-quoted substrings
// so a value can contain spaces: put greeting 'hello world'.
func splitFields(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return fields
}
