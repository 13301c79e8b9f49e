package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/typedkv/internal/app"
	"github.com/charlesng35/typedkv/pkg/codec"
	kverrors "github.com/charlesng35/typedkv/pkg/errors"
	"github.com/charlesng35/typedkv/pkg/kv"
	"github.com/charlesng35/typedkv/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		// Absent keys exit 2 so scripts can tell "not there" from "broken".
		if errors.Is(err, kverrors.ErrNotFound) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) (err error) {
	fs := flag.NewFlagSet("kvctl", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err = fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return errors.New("usage: kvctl [-config path] <command> [args]\ncommands: get put add delete has keys count clear scan type many-delete import")
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err = app.ConfigureLogging(cfg.Log.Level); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	storeCfg, err := cfg.StoreSettings()
	if err != nil {
		return err
	}

	store, err := kv.New(storeCfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			err = multierr.Append(err, closeErr)
		}
	}()

	logger.WithModule("kvctl").Debug("store configured",
		zap.String("table", storeCfg.Table),
		zap.String("value_type", string(storeCfg.Type)))

	return dispatch(ctx, store, cfg, rest[0], rest[1:])
}

func dispatch(ctx context.Context, store *kv.Store, cfg *app.Config, command string, args []string) error {
	switch command {
	case "get":
		return runGet(ctx, store, cfg, args)
	case "put":
		return runPut(ctx, store, args)
	case "add":
		return runAdd(ctx, store, args)
	case "delete":
		return runDelete(ctx, store, args)
	case "has":
		return runHas(ctx, store, args)
	case "keys":
		return runKeys(ctx, store)
	case "count":
		return runCount(ctx, store)
	case "clear":
		return runClear(ctx, store, args)
	case "scan":
		return runScan(ctx, store, args)
	case "type":
		return runType(store)
	case "many-delete":
		return runDeleteMany(ctx, store, args)
	case "import":
		return runImport(ctx, store, cfg, args)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func runGet(ctx context.Context, store *kv.Store, cfg *app.Config, args []string) error {
	fs := flag.NewFlagSet("kvctl get", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	ttl := fs.Duration("ttl", cfg.Store.DefaultTTL, "Evict the entry when it is older than this")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: kvctl get [-ttl duration] <key>")
	}

	value, found, err := store.Get(ctx, fs.Arg(0), *ttl)
	if err != nil {
		return err
	}
	if !found {
		return kverrors.ErrNotFound.WithMessage(fmt.Sprintf("key %q not found", fs.Arg(0)))
	}

	fmt.Println(renderValue(value))
	return nil
}

func runPut(ctx context.Context, store *kv.Store, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: kvctl put <key> <value>")
	}
	return store.Put(ctx, args[0], parseValue(store.ValueType(), args[1]))
}

func runAdd(ctx context.Context, store *kv.Store, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: kvctl add <key> <value>")
	}
	return store.Add(ctx, args[0], parseValue(store.ValueType(), args[1]))
}

func runDelete(ctx context.Context, store *kv.Store, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: kvctl delete <key>")
	}

	removed, err := store.Delete(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Println(removed)
	return nil
}

func runHas(ctx context.Context, store *kv.Store, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: kvctl has <key>")
	}

	exists, err := store.Has(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Println(exists)
	if !exists {
		return kverrors.ErrNotFound.WithMessage(fmt.Sprintf("key %q not found", args[0]))
	}
	return nil
}

func runKeys(ctx context.Context, store *kv.Store) error {
	keys, err := store.Keys(ctx)
	if err != nil {
		return err
	}

	for _, key := range keys {
		fmt.Println(key)
	}
	return nil
}

func runCount(ctx context.Context, store *kv.Store) error {
	n, err := store.Count(ctx)
	if err != nil {
		return err
	}

	fmt.Println(n)
	return nil
}

func runClear(ctx context.Context, store *kv.Store, args []string) error {
	fs := flag.NewFlagSet("kvctl clear", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	yes := fs.Bool("yes", false, "Confirm removing every entry in the table")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		return errors.New("clear removes every entry; re-run with -yes to confirm")
	}

	return store.Clear(ctx)
}

func runScan(ctx context.Context, store *kv.Store, args []string) error {
	fs := flag.NewFlagSet("kvctl scan", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	limit := fs.Int("limit", 0, "Maximum number of entries to return")
	offset := fs.Int("offset", 0, "Entries to skip from the start of the range")
	desc := fs.Bool("desc", false, "Scan in descending key order")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: kvctl scan [-limit n] [-offset n] [-desc] <prefix>")
	}

	entries, err := store.ScanPrefix(ctx, fs.Arg(0), kv.ScanOptions{
		Limit:      *limit,
		Offset:     *offset,
		Descending: *desc,
	})
	if err != nil {
		return err
	}

	for _, entry := range entries {
		fmt.Printf("%s\t%s\n", entry.Key, renderValue(entry.Value))
	}
	return nil
}

func runType(store *kv.Store) error {
	raw, err := json.Marshal(store.TypeInfo())
	if err != nil {
		return err
	}

	fmt.Println(string(raw))
	return nil
}

func runDeleteMany(ctx context.Context, store *kv.Store, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: kvctl many-delete <key>...")
	}

	removed, err := store.DeleteMany(ctx, args)
	if err != nil {
		return err
	}

	fmt.Println(removed)
	return nil
}

func runImport(ctx context.Context, store *kv.Store, cfg *app.Config, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: kvctl import <json-file>")
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("import file must hold a JSON object: %w", err)
	}

	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]kv.Pair, 0, len(doc))
	for _, key := range keys {
		pairs = append(pairs, kv.Pair{Key: key, Value: doc[key]})
	}

	if err := store.PutMany(ctx, pairs, cfg.Store.BatchSize); err != nil {
		return err
	}

	fmt.Printf("imported %d entries\n", len(pairs))
	return nil
}

// parseValue interprets a command line literal for the store's value type.
// JSON stores accept any JSON document with a bare-string fallback; the
// scalar codecs coerce strings themselves.
func parseValue(vt codec.Type, raw string) any {
	if vt == codec.TypeJSON {
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err == nil {
			return value
		}
	}
	return raw
}

func renderValue(value any) string {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	case map[string]any, []any:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	default:
		return fmt.Sprint(v)
	}
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}
