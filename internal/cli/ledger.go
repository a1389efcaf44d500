package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
	"github.com/ruralpay/stash/internal/amount"
	"github.com/ruralpay/stash/internal/config"
	"github.com/ruralpay/stash/internal/models"
	"github.com/ruralpay/stash/internal/services"
)

type userCmd struct {
	connect    Connector
	externalID int64
	username   string
	firstName  string
	lastName   string
}

func (*userCmd) Name() string     { return "user" }
func (*userCmd) Synopsis() string { return "register an external identity and print its user id" }
func (*userCmd) Usage() string {
	return `stashctl user -external-id <id> -first-name <name> [-username <handle>] [-last-name <name>]
`
}

func (c *userCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.externalID, "external-id", 0, "Chat platform user id.")
	f.StringVar(&c.username, "username", "", "Optional handle.")
	f.StringVar(&c.firstName, "first-name", "", "First name (required).")
	f.StringVar(&c.lastName, "last-name", "", "Optional last name.")
}

func (c *userCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.externalID == 0 || c.firstName == "" {
		return errorf("-external-id and -first-name are required")
	}

	db, err := c.connect()
	if err != nil {
		return errorf("%v", err)
	}
	defer db.Close()

	id, err := services.NewUserRegistry(db).EnsureUser(ctx, c.externalID, optional(c.username), c.firstName, optional(c.lastName))
	if err != nil {
		return errorf("%v", err)
	}

	fmt.Fprintln(stdout, id)
	return subcommands.ExitSuccess
}

type addCmd struct {
	connect Connector
	user    string
	kind    string
	amount  string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "append a save or adjust entry" }
func (*addCmd) Usage() string {
	return `stashctl add -user <id> [-kind save|adjust] -amount <amount> [reason...]
stashctl add -user <id> [-kind save|adjust] [--] <amount> [reason...]

  Amounts accept a dot or a comma as decimal separator with at most two
  fraction digits. Signed amounts are only accepted with -kind adjust; pass
  them with -amount or after "--" so they are not read as flags.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "User id.")
	f.StringVar(&c.kind, "kind", "save", "Entry kind (save, adjust).")
	f.StringVar(&c.amount, "amount", "", "Amount, e.g. 12.34 or -5.50. Remaining arguments become the reason.")
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		return errorf("-user is required")
	}
	kind := models.EntryKind(c.kind)
	if kind != models.KindSave && kind != models.KindAdjust {
		return errorf("unsupported kind %q", c.kind)
	}

	args := f.Args()
	if c.amount != "" {
		args = append([]string{c.amount}, args...)
	}
	cents, reason, err := amount.Parse(strings.Join(args, " "), kind == models.KindAdjust)
	if err != nil {
		return errorf("%v", err)
	}

	db, err := c.connect()
	if err != nil {
		return errorf("%v", err)
	}
	defer db.Close()

	entry, err := services.NewLedgerService(db).AddEntry(ctx, c.user, cents, kind, reason)
	if err != nil {
		return errorf("%v", err)
	}

	fmt.Fprintf(stdout, "entry %d: %d cents [%s]\n", entry.ID, entry.AmountCents, entry.Kind)
	return subcommands.ExitSuccess
}

type balanceCmd struct {
	connect  Connector
	currency string
	user     string
}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "print current, history and grand totals of a user" }
func (*balanceCmd) Usage() string {
	return `stashctl balance -user <id>
`
}

func (c *balanceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "User id.")
}

func (c *balanceCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		return errorf("-user is required")
	}

	db, err := c.connect()
	if err != nil {
		return errorf("%v", err)
	}
	defer db.Close()

	user, err := services.NewUserRegistry(db).GetUser(ctx, c.user)
	if err != nil {
		return errorf("%v", err)
	}

	totals, err := services.NewLedgerService(db).Totals(ctx, c.user)
	if err != nil {
		return errorf("%v", err)
	}

	fmt.Fprintf(stdout, "%s\n", user.DisplayName())
	fmt.Fprintf(stdout, "current: %s\n", formatCents(totals.CurrentCents, c.currency))
	fmt.Fprintf(stdout, "history: %s\n", formatCents(totals.HistoryCents, c.currency))
	fmt.Fprintf(stdout, "grand:   %s\n", formatCents(totals.GrandCents(), c.currency))
	return subcommands.ExitSuccess
}

type entriesCmd struct {
	connect Connector
	config  *config.LedgerConfig
	user    string
	n       int
}

func (*entriesCmd) Name() string     { return "entries" }
func (*entriesCmd) Synopsis() string { return "list the most recent entries of a user" }
func (*entriesCmd) Usage() string {
	return `stashctl entries -user <id> [-n <count>]
`
}

func (c *entriesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "User id.")
	f.IntVar(&c.n, "n", c.config.DefaultQueryLimit, "Number of entries.")
}

func (c *entriesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		return errorf("-user is required")
	}

	db, err := c.connect()
	if err != nil {
		return errorf("%v", err)
	}
	defer db.Close()

	entries, err := services.NewLedgerService(db).RecentEntries(ctx, c.user, c.config.ClampLimit(c.n))
	if err != nil {
		return errorf("%v", err)
	}

	for _, e := range entries {
		reason := ""
		if e.Reason != nil {
			reason = *e.Reason
		}
		fmt.Fprintf(stdout, "%d\t%s\t%d\t%s\t%s\n", e.ID, e.CreatedAt.Format("2006-01-02 15:04"), e.AmountCents, e.Kind, reason)
	}
	return subcommands.ExitSuccess
}

type archiveCmd struct {
	connect  Connector
	currency string
	user     string
}

func (*archiveCmd) Name() string     { return "archive" }
func (*archiveCmd) Synopsis() string { return "move a user's current balance into history" }
func (*archiveCmd) Usage() string {
	return `stashctl archive -user <id>
`
}

func (c *archiveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "User id.")
}

func (c *archiveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		return errorf("-user is required")
	}

	db, err := c.connect()
	if err != nil {
		return errorf("%v", err)
	}
	defer db.Close()

	moved, err := services.NewLedgerService(db).Archive(ctx, c.user)
	if errors.Is(err, services.ErrNothingToArchive) {
		fmt.Fprintln(stdout, "nothing to archive")
		return subcommands.ExitSuccess
	}
	if err != nil {
		return errorf("%v", err)
	}

	fmt.Fprintf(stdout, "archived %s\n", formatCents(moved, c.currency))
	return subcommands.ExitSuccess
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
