package cli

import (
	"bytes"
	"context"
	"flag"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/subcommands"
	"github.com/jmoiron/sqlx"
	"github.com/ruralpay/stash/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID = "3f1c2b9e-8d4a-4c47-9a57-2f7d0c1e5b11"

func mockConnector(t *testing.T) (Connector, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(mockDB, "sqlmock")
	return func() (*sqlx.DB, error) { return db, nil }, mock
}

func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	oldOut, oldErr := stdout, stderr
	stdout, stderr = &out, &errOut
	t.Cleanup(func() { stdout, stderr = oldOut, oldErr })
	return &out, &errOut
}

func run(t *testing.T, c subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	c.SetFlags(fs)
	require.NoError(t, fs.Parse(args))
	return c.Execute(context.Background(), fs)
}

func TestBalanceCmd(t *testing.T) {
	out, _ := captureOutput(t)
	connect, mock := mockConnector(t)

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "external_id", "username", "first_name", "last_name", "created_at"}).
			AddRow(testUserID, 42, nil, "John", nil, time.Now()))
	mock.ExpectQuery(`AS current_cents`).
		WithArgs(testUserID, "archive").
		WillReturnRows(sqlmock.NewRows([]string{"current_cents", "history_cents"}).AddRow(123456, 5000))
	mock.ExpectClose()

	status := run(t, &balanceCmd{connect: connect, currency: "USD"}, "-user", testUserID)

	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, "John\ncurrent: $1,234.56\nhistory: $50.00\ngrand:   $1,284.56\n", out.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveCmd_NothingToArchive(t *testing.T) {
	out, _ := captureOutput(t)
	connect, mock := mockConnector(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM users WHERE id = \$1 FOR UPDATE`).
		WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testUserID))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount_cents\), 0\) FROM entries`).
		WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
	mock.ExpectRollback()
	mock.ExpectClose()

	status := run(t, &archiveCmd{connect: connect, currency: "USD"}, "-user", testUserID)

	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, "nothing to archive\n", out.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddCmd(t *testing.T) {
	t.Run("adjust with reason", func(t *testing.T) {
		out, _ := captureOutput(t)
		connect, mock := mockConnector(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WithArgs(testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testUserID))
		mock.ExpectQuery(`INSERT INTO entries`).
			WithArgs(testUserID, int64(-250), "adjust", "bank fee", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
		mock.ExpectCommit()
		mock.ExpectClose()

		status := run(t, &addCmd{connect: connect}, "-user", testUserID, "-kind", "adjust", "-amount", "-2.50", "bank", "fee")

		assert.Equal(t, subcommands.ExitSuccess, status)
		assert.Equal(t, "entry 9: -250 cents [adjust]\n", out.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("negative amount after terminator", func(t *testing.T) {
		out, _ := captureOutput(t)
		connect, mock := mockConnector(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WithArgs(testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testUserID))
		mock.ExpectQuery(`INSERT INTO entries`).
			WithArgs(testUserID, int64(-1050), "adjust", "refund", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
		mock.ExpectCommit()
		mock.ExpectClose()

		status := run(t, &addCmd{connect: connect}, "-user", testUserID, "-kind", "adjust", "--", "-10,50", "refund")

		assert.Equal(t, subcommands.ExitSuccess, status)
		assert.Equal(t, "entry 10: -1050 cents [adjust]\n", out.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects archive kind without touching the database", func(t *testing.T) {
		_, errOut := captureOutput(t)
		connect, mock := mockConnector(t)

		status := run(t, &addCmd{connect: connect}, "-user", testUserID, "-kind", "archive", "5")

		assert.Equal(t, subcommands.ExitFailure, status)
		assert.Contains(t, errOut.String(), "unsupported kind")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("requires a user", func(t *testing.T) {
		_, errOut := captureOutput(t)

		status := run(t, &addCmd{}, "5")

		assert.Equal(t, subcommands.ExitFailure, status)
		assert.Contains(t, errOut.String(), "-user is required")
	})
}

func TestEntriesCmd(t *testing.T) {
	out, _ := captureOutput(t)
	connect, mock := mockConnector(t)
	created := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)

	mock.ExpectQuery(`ORDER BY id DESC LIMIT \$2`).
		WithArgs(testUserID, 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount_cents", "kind", "reason", "created_at"}).
			AddRow(2, testUserID, 500, "save", "coffee", created))
	mock.ExpectClose()

	cfg := &config.LedgerConfig{DefaultQueryLimit: 10, MaxQueryLimit: 50}
	status := run(t, &entriesCmd{connect: connect, config: cfg}, "-user", testUserID, "-n", "3")

	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, "2\t2024-03-09 14:05\t500\tsave\tcoffee\n", out.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntriesCmd_DefaultLimit(t *testing.T) {
	captureOutput(t)
	connect, mock := mockConnector(t)

	mock.ExpectQuery(`ORDER BY id DESC LIMIT \$2`).
		WithArgs(testUserID, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount_cents", "kind", "reason", "created_at"}))
	mock.ExpectClose()

	cfg := &config.LedgerConfig{DefaultQueryLimit: 10, MaxQueryLimit: 50}
	status := run(t, &entriesCmd{connect: connect, config: cfg}, "-user", testUserID)

	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateCmd(t *testing.T) {
	out, _ := captureOutput(t)
	connect, mock := mockConnector(t)

	mock.ExpectBegin()
	for range 6 {
		mock.ExpectExec(`.+`).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()
	mock.ExpectClose()

	status := run(t, &migrateCmd{connect: connect})

	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, "schema up to date\n", out.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakeTokens struct {
	issued  string
	revoked []string
}

func (f *fakeTokens) Issue(subject string, ttl time.Duration) (string, error) {
	f.issued = subject + "/" + ttl.String()
	return "signed-token", nil
}

func (f *fakeTokens) Revoke(_ context.Context, token string) error {
	f.revoked = append(f.revoked, token)
	return nil
}

func TestTokenCmds(t *testing.T) {
	out, _ := captureOutput(t)
	fake := &fakeTokens{}
	factory := func(bool) (TokenIssuer, func()) { return fake, func() {} }

	status := run(t, &tokenCmd{tokens: factory}, "-sub", "gateway", "-ttl", "2h")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, "gateway/2h0m0s", fake.issued)

	status = run(t, &revokeCmd{tokens: factory}, "signed-token")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, []string{"signed-token"}, fake.revoked)

	assert.Equal(t, "signed-token\ntoken revoked\n", out.String())

	status = run(t, &tokenCmd{tokens: factory})
	assert.Equal(t, subcommands.ExitFailure, status)
}
