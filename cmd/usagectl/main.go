// cmd/usagectl/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	usecase "thriftmall/internal/application/usecase"
	cartdom "thriftmall/internal/domain/cart"
	rl "thriftmall/internal/domain/ratelimit"
	appcfg "thriftmall/internal/infra/config"
	shared "thriftmall/internal/platform/di/shared"
)

// CLI is the operator tool for usage records and cart merges.
type CLI struct {
	Backend    string        `help:"Store backend (firestore, postgres, memory). Defaults to STORE_BACKEND."`
	Collection string        `help:"Usage collection." default:"usage_metadata"`
	Timeout    time.Duration `help:"Overall deadline for store calls." default:"2m"`

	Inspect InspectCmd `cmd:"" help:"Show a user's windows for one action."`
	Reset   ResetCmd   `cmd:"" help:"Delete a user's usage record."`
	Sweep   SweepCmd   `cmd:"" help:"Delete usage records untouched for a while."`
	Merge   MergeCmd   `cmd:"" help:"Dry-run a cart merge of two JSON files (no store access)."`

	out     io.Writer `kong:"-"`
	archive string    `kong:"-"`
}

type InspectCmd struct {
	User   string `required:"" help:"User id."`
	Action string `required:"" help:"Action type, e.g. favorite."`
}

func (c *InspectCmd) Run(cli *CLI) error {
	return cli.withLimiter(func(ctx context.Context, uc *usecase.UserActionLimiter) error {
		usages, err := uc.Usage(ctx, c.User, c.Action, rl.Options{CollectionName: cli.Collection})
		if err != nil {
			return err
		}
		return printUsage(cli.out, usages)
	})
}

type ResetCmd struct {
	User string `required:"" help:"User id."`
}

func (c *ResetCmd) Run(cli *CLI) error {
	return cli.withLimiter(func(ctx context.Context, uc *usecase.UserActionLimiter) error {
		if err := uc.Reset(ctx, c.User, cli.Collection); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "reset %s in %s\n", c.User, cli.Collection)
		return nil
	})
}

type SweepCmd struct {
	OlderThan   time.Duration `name:"older-than" help:"Delete records whose lastWrite is older than this." default:"720h"`
	Collections []string      `name:"also" help:"Additional collections to sweep."`
	Archive     string        `help:"gs://bucket/prefix to copy records to before deleting. Defaults to USAGE_ARCHIVE_URL."`
}

func (c *SweepCmd) Run(cli *CLI) error {
	if c.OlderThan <= 0 {
		return errors.New("--older-than must be positive")
	}
	cli.archive = strings.TrimSpace(c.Archive)
	return cli.withLimiter(func(ctx context.Context, uc *usecase.UserActionLimiter) error {
		before := time.Now().Add(-c.OlderThan)
		cols := append([]string{cli.Collection}, c.Collections...)
		n, err := uc.Sweep(ctx, before, cols...)
		fmt.Fprintf(cli.out, "swept %d record(s) last written before %s\n", n, before.UTC().Format(time.RFC3339))
		return err
	})
}

type MergeCmd struct {
	Remote string `required:"" type:"existingfile" help:"Remote cart JSON ({vendorId: {vendorName, products}})."`
	Local  string `required:"" type:"existingfile" help:"Local cart JSON."`
}

func (c *MergeCmd) Run(cli *CLI) error {
	return mergeFiles(cli.out, c.Remote, c.Local)
}

// withLimiter opens the configured backend for the duration of fn.
func (cli *CLI) withLimiter(fn func(context.Context, *usecase.UserActionLimiter) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), cli.Timeout)
	defer cancel()

	cfg := appcfg.Load()
	if b := strings.TrimSpace(cli.Backend); b != "" {
		cfg.Backend = strings.ToLower(b)
	}
	if cli.archive != "" {
		cfg.UsageArchiveURL = cli.archive
	}

	inf, err := shared.NewInfra(ctx, cfg, shared.Options{SkipAuth: true})
	if err != nil {
		return err
	}
	defer inf.Close()

	stores, err := shared.NewStores(inf)
	if err != nil {
		return err
	}
	uc := usecase.NewUserActionLimiter(stores.Usage, stores.Profiles, nil)
	if stores.Archive != nil {
		uc.SetArchive(stores.Archive)
	}
	return fn(ctx, uc)
}

func printUsage(w io.Writer, usages []rl.Usage) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WINDOW\tCOUNT\tLIMIT\tREMAINING\tRESETS")
	for _, u := range usages {
		reset := "-"
		if !u.ResetAt.IsZero() {
			reset = u.ResetAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", u.Window, u.Count, u.Limit, u.Remaining, reset)
	}
	return tw.Flush()
}

func mergeFiles(w io.Writer, remotePath, localPath string) error {
	remote, err := readCart(remotePath)
	if err != nil {
		return err
	}
	local, err := readCart(localPath)
	if err != nil {
		return err
	}

	res := cartdom.Merge(remote, local)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func readCart(path string) (cartdom.Cart, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c cartdom.Cart
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func main() {
	cli := CLI{out: os.Stdout}
	ctx := kong.Parse(&cli,
		kong.Name("usagectl"),
		kong.Description("Inspect and maintain thriftmall usage records."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
