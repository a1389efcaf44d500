// Package cli implements the stashctl operator commands.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/google/subcommands"
	"github.com/jmoiron/sqlx"
	"github.com/ruralpay/stash/internal/config"
	"github.com/ruralpay/stash/internal/database"
	"github.com/spf13/viper"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Connector opens the ledger database.
type Connector func() (*sqlx.DB, error)

// Register the subcommands.
func Register(c *subcommands.Commander) {
	connect := defaultConnect
	cfg := config.LoadLedgerConfig()

	c.Register(&migrateCmd{connect: connect}, "database")

	c.Register(&tokenCmd{tokens: defaultTokens}, "auth")
	c.Register(&revokeCmd{tokens: defaultTokens}, "auth")

	c.Register(&userCmd{connect: connect}, "ledger")
	c.Register(&addCmd{connect: connect}, "ledger")
	c.Register(&balanceCmd{connect: connect, currency: currencyCode(cfg.Currency)}, "ledger")
	c.Register(&entriesCmd{connect: connect, config: cfg}, "ledger")
	c.Register(&archiveCmd{connect: connect, currency: currencyCode(cfg.Currency)}, "ledger")
}

func defaultConnect() (*sqlx.DB, error) {
	viper.AutomaticEnv()
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	return database.InitDB()
}

func currencyCode(code string) string {
	code = strings.ToUpper(code)
	if money.GetCurrency(code) == nil {
		return money.USD
	}
	return code
}

func formatCents(cents int64, currency string) string {
	return money.New(cents, currency).Display()
}

func errorf(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(stderr, format+"\n", args...)
	return subcommands.ExitFailure
}
