// Command cli inspects and maintains the cooldown store while the bot is
// offline or running against the sqlite driver.
//
//	cli [-driver sqlite|json] [-path file] list|cancel <key>|prune
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/keshon/interkit/internal/config"
	"github.com/keshon/interkit/internal/cooldown"
	"github.com/keshon/interkit/internal/storage"
	"github.com/rs/zerolog"
)

var errUsage = errors.New("usage: cli [-driver sqlite|json] [-path file] list | cancel <key> | prune")

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("cli", flag.ExitOnError)
	driver := fs.String("driver", cfg.StoreDriver, "store driver (sqlite or json)")
	path := fs.String("path", cfg.StoragePath, "store file path")
	fs.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(*driver, *path, zerolog.Nop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	err = run(ctx, store, fs.Args(), os.Stdout, time.Now())
	if cerr := store.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, store cooldown.Store, args []string, out io.Writer, now time.Time) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "list":
		return list(ctx, store, out, now)
	case "cancel":
		if len(args) != 2 {
			return errUsage
		}
		if err := store.DeleteByID(ctx, args[1]); err != nil {
			return fmt.Errorf("cancel %s: %w", args[1], err)
		}
		fmt.Fprintf(out, "removed %s\n", args[1])
		return nil
	case "prune":
		n, err := store.DeleteWhere(ctx, cooldown.Filter{ExpiredBy: now})
		if err != nil {
			return fmt.Errorf("prune: %w", err)
		}
		fmt.Fprintf(out, "removed %d expired cooldown(s)\n", n)
		return nil
	default:
		return errUsage
	}
}

func list(ctx context.Context, store cooldown.Store, out io.Writer, now time.Time) error {
	records, err := store.FindAll(ctx, cooldown.Filter{})
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "no cooldowns")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tEXPIRES\tVIOLATIONS")
	for _, r := range records {
		state := humanize.RelTime(r.Expires, now, "ago", "from now")
		if r.Expired(now) {
			state = "expired " + state
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\n", r.Key, state, r.Count)
	}
	return tw.Flush()
}
