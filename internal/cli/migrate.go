package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"github.com/ruralpay/stash/internal/database"
)

type migrateCmd struct {
	connect Connector
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "create or update the ledger schema" }
func (*migrateCmd) Usage() string {
	return `stashctl migrate

  Creates the users and entries tables, their indexes and the append-only
  guard on entries. Safe to run repeatedly.
`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (c *migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	db, err := c.connect()
	if err != nil {
		return errorf("%v", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return errorf("migration failed: %v", err)
	}

	fmt.Fprintln(stdout, "schema up to date")
	return subcommands.ExitSuccess
}
