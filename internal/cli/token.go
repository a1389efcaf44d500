package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/subcommands"
	"github.com/ruralpay/stash/internal/database"
	"github.com/ruralpay/stash/internal/services"
	"github.com/spf13/viper"
)

// TokenIssuer signs and revokes API tokens.
type TokenIssuer interface {
	Issue(subject string, ttl time.Duration) (string, error)
	Revoke(ctx context.Context, token string) error
}

// TokenFactory builds a TokenIssuer and a func releasing its resources.
type TokenFactory func(withRedis bool) (TokenIssuer, func())

func defaultTokens(withRedis bool) (TokenIssuer, func()) {
	viper.AutomaticEnv()
	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.SetDefault("jwt.expiry_hours", 24)

	var rdb *redis.Client
	if withRedis {
		viper.BindEnv("redis.host", "REDIS_HOST")
		viper.BindEnv("redis.port", "REDIS_PORT")
		viper.BindEnv("redis.password", "REDIS_PASSWORD")
		viper.BindEnv("redis.db", "REDIS_DB")
		rdb = database.InitRedis()
	}

	tokens := services.NewTokenService(
		[]byte(viper.GetString("jwt.secret_key")),
		rdb,
		time.Duration(viper.GetInt("jwt.expiry_hours"))*time.Hour,
	)
	return tokens, func() {
		if rdb != nil {
			rdb.Close()
		}
	}
}

type tokenCmd struct {
	tokens  TokenFactory
	subject string
	ttl     time.Duration
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "issue an API bearer token" }
func (*tokenCmd) Usage() string {
	return `stashctl token -sub <subject> [-ttl <duration>]

  Prints a token signed with JWT_SECRET_KEY. The default lifetime is
  JWT_EXPIRY_HOURS.
`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.subject, "sub", "", "Token subject, e.g. the gateway name.")
	f.DurationVar(&c.ttl, "ttl", 0, "Token lifetime.")
}

func (c *tokenCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.subject == "" {
		return errorf("-sub is required")
	}

	tokens, release := c.tokens(false)
	defer release()

	token, err := tokens.Issue(c.subject, c.ttl)
	if err != nil {
		return errorf("%v", err)
	}

	fmt.Fprintln(stdout, token)
	return subcommands.ExitSuccess
}

type revokeCmd struct {
	tokens TokenFactory
}

func (*revokeCmd) Name() string     { return "revoke" }
func (*revokeCmd) Synopsis() string { return "revoke an API bearer token" }
func (*revokeCmd) Usage() string {
	return `stashctl revoke <token>
`
}

func (*revokeCmd) SetFlags(*flag.FlagSet) {}

func (c *revokeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return errorf("expected exactly one token")
	}

	tokens, release := c.tokens(true)
	defer release()

	if err := tokens.Revoke(ctx, f.Arg(0)); err != nil {
		return errorf("%v", err)
	}

	fmt.Fprintln(stdout, "token revoked")
	return subcommands.ExitSuccess
}
