package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sourcing-backend/pkg/client"
	"github.com/angelmondragon/sourcing-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
	"github.com/angelmondragon/sourcing-backend/pkg/logger"
)

const usage = `usage: sourcing-cli <command> [flags]

commands:
  create-requirement   post a buyer requirement
  submit-quote         post a merchant quote
  show-requirement     read a requirement, falling back to the local cache
  sync                 replay submissions saved locally
  pending              list submissions saved locally
  cached               list locally cached records (-kind requirement|quote)`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1], os.Args[2:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, cmd string, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	logg := logger.New(logger.Options{ServiceName: "sourcing-cli", Output: stderr})

	remote, err := client.NewRemote(cfg.BaseURL, client.WithToken(cfg.Token), client.WithTimeout(cfg.Timeout))
	if err != nil {
		fmt.Fprintf(stderr, "client: %v\n", err)
		return 1
	}
	store, err := client.OpenPendingStore(cfg.PendingDBPath)
	if err != nil {
		fmt.Fprintf(stderr, "pending store: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	ws, err := client.NewWorkspace(client.WorkspaceParams{
		Remote:        remote,
		Store:         store,
		Logger:        logg,
		RetryAttempts: cfg.RetryAttempts,
		RetryBase:     cfg.RetryBase,
	})
	if err != nil {
		fmt.Fprintf(stderr, "workspace: %v\n", err)
		return 1
	}

	switch cmd {
	case "create-requirement":
		return createRequirement(ctx, ws, args, stdout, stderr)
	case "submit-quote":
		return submitQuote(ctx, ws, args, stdout, stderr)
	case "show-requirement":
		return showRequirement(ctx, ws, args, stdout, stderr)
	case "sync":
		return syncPending(ctx, ws, stdout, stderr)
	case "pending":
		return listPending(ctx, ws, stdout, stderr)
	case "cached":
		return listCached(ctx, ws, args, stdout, stderr)
	default:
		fmt.Fprintln(stderr, usage)
		return 2
	}
}

func createRequirement(ctx context.Context, ws *client.Workspace, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("create-requirement", flag.ContinueOnError)
	fs.SetOutput(stderr)
	grade := fs.String("grade", "", "cashew grade, e.g. W320")
	origin := fs.String("origin", "", "origin, e.g. india")
	qty := fs.String("qty", "", "required quantity")
	minQty := fs.String("min", "", "minimum quantity")
	price := fs.String("price", "", "expected price per unit")
	deadline := fs.String("deadline", "", "delivery deadline (YYYY-MM-DD)")
	location := fs.String("location", "", "delivery location")
	city := fs.String("city", "", "delivery city")
	country := fs.String("country", "", "delivery country")
	specs := fs.String("specs", "", "free-text specifications")
	allowLower := fs.Bool("allow-lower", false, "accept bids below the expected price")
	draft := fs.Bool("draft", false, "save as draft")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	expected, err := decimal.NewFromString(*price)
	if err != nil {
		fmt.Fprintf(stderr, "invalid input: price %q is not a number\n", *price)
		return 1
	}
	in := client.CreateRequirementInput{
		Grade:            *grade,
		Origin:           *origin,
		RequiredQuantity: *qty,
		MinimumQuantity:  *minQty,
		ExpectedPrice:    expected,
		AllowLowerBid:    *allowLower,
		DeliveryLocation: *location,
		DeliveryCity:     *city,
		DeliveryCountry:  *country,
		DeliveryDeadline: *deadline,
		IsDraft:          *draft,
	}
	if *specs != "" {
		in.Specifications = specs
	}

	res, err := ws.CreateRequirement(ctx, in)
	if err != nil {
		return reportError(stderr, err)
	}
	if res.SavedLocally {
		fmt.Fprintln(stderr, res.Notice)
	}
	return printJSON(stdout, stderr, res.Requirement)
}

func submitQuote(ctx context.Context, ws *client.Workspace, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("submit-quote", flag.ContinueOnError)
	fs.SetOutput(stderr)
	requirementID := fs.String("requirement", "", "requirement id")
	qty := fs.String("qty", "", "offered quantity")
	price := fs.String("price", "", "offered price per unit")
	remarks := fs.String("remarks", "", "optional remarks")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	offered, err := decimal.NewFromString(*price)
	if err != nil {
		fmt.Fprintf(stderr, "invalid input: price %q is not a number\n", *price)
		return 1
	}
	in := client.SubmitQuoteInput{Quantity: *qty, Price: offered}
	if *remarks != "" {
		in.Remarks = remarks
	}

	res, err := ws.SubmitQuote(ctx, *requirementID, in)
	if err != nil {
		return reportError(stderr, err)
	}
	if res.SavedLocally {
		fmt.Fprintln(stderr, res.Notice)
	}
	return printJSON(stdout, stderr, res.Quote)
}

func showRequirement(ctx context.Context, ws *client.Workspace, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("show-requirement", flag.ContinueOnError)
	fs.SetOutput(stderr)
	id := fs.String("id", "", "requirement id")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	req, fromCache, err := ws.Requirement(ctx, *id)
	if err != nil {
		return reportError(stderr, err)
	}
	if fromCache {
		fmt.Fprintln(stderr, "showing cached copy; the server could not be reached")
	}
	return printJSON(stdout, stderr, req)
}

func syncPending(ctx context.Context, ws *client.Workspace, stdout, stderr io.Writer) int {
	report, err := ws.Reconcile(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "sync: %v\n", err)
		return 1
	}
	for _, rejected := range report.Rejected {
		fmt.Fprintf(stderr, "%s %s rejected: %s\n", rejected.Kind, rejected.LocalID, describe(rejected.Err))
	}
	summary := map[string]any{
		"synced":   report.Synced,
		"rejected": len(report.Rejected),
		"deferred": report.Deferred,
	}
	return printJSON(stdout, stderr, summary)
}

func listPending(ctx context.Context, ws *client.Workspace, stdout, stderr io.Writer) int {
	pending, err := ws.Pending(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "pending: %v\n", err)
		return 1
	}
	return printJSON(stdout, stderr, pending)
}

func listCached(ctx context.Context, ws *client.Workspace, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cached", flag.ContinueOnError)
	fs.SetOutput(stderr)
	kind := fs.String("kind", client.KindQuote, "record kind: requirement or quote")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	entries, err := ws.Cached(ctx, *kind)
	if err != nil {
		fmt.Fprintf(stderr, "cached: %v\n", err)
		return 1
	}
	return printJSON(stdout, stderr, entries)
}

// reportError keeps invalid input, unreachable server and lost races apart.
func reportError(stderr io.Writer, err error) int {
	fmt.Fprintln(stderr, describe(err))
	return 1
}

func describe(err error) string {
	typed := pkgerrors.As(err)
	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case client.IsTransport(err):
		return fmt.Sprintf("server unreachable: %v", err)
	case typed == nil:
		return err.Error()
	case typed.Code() == pkgerrors.CodeValidation:
		return fmt.Sprintf("invalid input (%s): %s", typed.Reason(), typed.Message())
	case typed.Code() == pkgerrors.CodeStateConflict, typed.Code() == pkgerrors.CodeConflict:
		return fmt.Sprintf("no longer possible (%s): %s", typed.Reason(), typed.Message())
	default:
		return fmt.Sprintf("%s: %s", typed.Code(), typed.Message())
	}
}

func printJSON(stdout, stderr io.Writer, v any) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(stderr, "encode output: %v\n", err)
		return 1
	}
	return 0
}
