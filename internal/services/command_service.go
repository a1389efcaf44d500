package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Rhymond/go-money"
	"github.com/go-redis/redis/v8"
	"github.com/ruralpay/stash/internal/amount"
	"github.com/ruralpay/stash/internal/config"
	"github.com/ruralpay/stash/internal/models"
)

// UserResolver resolves the acting user of a command.
type UserResolver interface {
	EnsureUser(ctx context.Context, externalID int64, username *string, firstName string, lastName *string) (string, error)
}

// Ledger is the part of LedgerService the command and HTTP layers use.
type Ledger interface {
	AddEntry(ctx context.Context, userID string, amountCents int64, kind models.EntryKind, reason *string) (*models.Entry, error)
	Archive(ctx context.Context, userID string) (int64, error)
	Totals(ctx context.Context, userID string) (models.Totals, error)
	RecentEntries(ctx context.Context, userID string, limit int) ([]models.Entry, error)
}

// Sender identifies who sent a chat message. MessageID is the platform's id
// for the delivery; zero disables duplicate suppression.
type Sender struct {
	ExternalID int64
	MessageID  int64
	Username   *string
	FirstName  string
	LastName   *string
}

// deliveryTTL bounds how long a delivered message id is remembered.
const deliveryTTL = 24 * time.Hour

func (s Sender) displayName() string {
	u := models.User{Username: s.Username, FirstName: s.FirstName}
	return u.DisplayName()
}

const helpText = `Commands:
/start - register and show your user id
/save {amount} [reason] - save money, e.g. /save 12.34 lunch
/adjust {+/-amount} [reason] - correct the balance, e.g. /adjust -5.50 refund
/allinvoo - invest the current balance and reset it to 0 (moves to history)
/query [n] - list your last n entries (default 10)
/help - this help`

const (
	saveFormat   = "Format: /save 12.34 [reason]"
	adjustFormat = "Format: /adjust -5.50 [reason]"
)

type CommandService struct {
	users    UserResolver
	ledger   Ledger
	redis    *redis.Client
	config   *config.LedgerConfig
	currency string
}

func NewCommandService(users UserResolver, ledger Ledger, redis *redis.Client, cfg *config.LedgerConfig) *CommandService {
	currency := strings.ToUpper(cfg.Currency)
	if money.GetCurrency(currency) == nil {
		log.Printf("[COMMAND] Unknown currency %q, falling back to USD", cfg.Currency)
		currency = money.USD
	}
	return &CommandService{
		users:    users,
		ledger:   ledger,
		redis:    redis,
		config:   cfg,
		currency: currency,
	}
}

// Execute runs one chat message and returns the reply text. Text that is not
// a command addressed to this bot yields an empty reply. Input mistakes are
// answered in the reply; the returned error is reserved for rate limiting and
// storage failures. A message that fails with an error may be redelivered.
func (s *CommandService) Execute(ctx context.Context, sender Sender, text string) (string, error) {
	name, args, ok := s.splitCommand(text)
	if !ok {
		return "", nil
	}

	if err := s.checkRateLimit(ctx, sender.ExternalID); err != nil {
		return "Too many commands, please slow down.", err
	}

	if !s.claimDelivery(ctx, sender) {
		log.Printf("[COMMAND] Dropping duplicate delivery %d from external id %d", sender.MessageID, sender.ExternalID)
		return "", nil
	}

	reply, err := s.dispatch(ctx, sender, name, args)
	if err != nil {
		s.releaseDelivery(ctx, sender)
	}
	return reply, err
}

func (s *CommandService) dispatch(ctx context.Context, sender Sender, name, args string) (string, error) {
	userID, err := s.users.EnsureUser(ctx, sender.ExternalID, sender.Username, sender.FirstName, sender.LastName)
	if err != nil {
		return "", fmt.Errorf("error resolving user: %w", err)
	}

	log.Printf("[COMMAND] /%s from external id %d (user %s)", name, sender.ExternalID, userID)

	switch name {
	case "start":
		return fmt.Sprintf("Welcome, %s!\nYour user id: %s\nUse /save, /adjust, /allinvoo, /query.", sender.displayName(), userID), nil
	case "help":
		return helpText, nil
	case "save":
		return s.save(ctx, userID, args)
	case "adjust":
		return s.adjust(ctx, userID, args)
	case "allinvoo", "invest", "archive":
		return s.archive(ctx, userID)
	case "query":
		return s.query(ctx, userID, sender, args)
	default:
		return "Unknown command. Send /help for the list.", nil
	}
}

// splitCommand returns the lower-cased command name without "/" and "@bot".
func (s *CommandService) splitCommand(text string) (string, string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}

	head, args := text[1:], ""
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, args = head[:i], head[i:]
	}
	name, bot, addressed := strings.Cut(head, "@")
	if addressed && s.config.BotName != "" && !strings.EqualFold(bot, s.config.BotName) {
		return "", "", false
	}
	if name == "" {
		return "", "", false
	}
	return strings.ToLower(name), strings.TrimSpace(args), true
}

func (s *CommandService) save(ctx context.Context, userID, args string) (string, error) {
	cents, reason, err := amount.Parse(args, false)
	if err != nil {
		switch {
		case errors.Is(err, amount.ErrSignNotAllowed):
			return "Use /adjust for signed amounts.\n" + saveFormat, nil
		case errors.Is(err, amount.ErrAmountOverflow):
			return "That amount is too large.", nil
		default:
			return saveFormat, nil
		}
	}

	if _, err := s.ledger.AddEntry(ctx, userID, cents, models.KindSave, reason); err != nil {
		if errors.Is(err, ErrInvalidEntry) {
			return "Amount must be positive for /save.", nil
		}
		return "", err
	}

	return fmt.Sprintf("Saved %s\n%s%s",
		s.format(cents), reasonLine(reason), s.totalLine(ctx, userID)), nil
}

func (s *CommandService) adjust(ctx context.Context, userID, args string) (string, error) {
	cents, reason, err := amount.Parse(args, true)
	if err != nil {
		if errors.Is(err, amount.ErrAmountOverflow) {
			return "That amount is too large.", nil
		}
		return adjustFormat, nil
	}

	if _, err := s.ledger.AddEntry(ctx, userID, cents, models.KindAdjust, reason); err != nil {
		if errors.Is(err, ErrInvalidEntry) {
			return "Adjustment must be non-zero.", nil
		}
		return "", err
	}

	verb := "added"
	if cents < 0 {
		verb = "subtracted"
	}
	return fmt.Sprintf("Adjustment %s %s\n%s%s",
		verb, s.format(abs(cents)), reasonLine(reason), s.totalLine(ctx, userID)), nil
}

func (s *CommandService) archive(ctx context.Context, userID string) (string, error) {
	moved, err := s.ledger.Archive(ctx, userID)
	if errors.Is(err, ErrNothingToArchive) {
		totals, err := s.ledger.Totals(ctx, userID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Nothing to invest yet. Your current total is %s.", s.format(totals.CurrentCents)), nil
	}
	if err != nil {
		return "", err
	}

	totals, err := s.ledger.Totals(ctx, userID)
	if err != nil {
		log.Printf("[COMMAND] Totals after archive failed for user %s: %v", userID, err)
		return fmt.Sprintf("Invested %s (moved to history).", s.format(moved)), nil
	}
	return fmt.Sprintf("Invested %s (moved to history).\nCurrent now: %s\nHistory total: %s",
		s.format(moved), s.format(totals.CurrentCents), s.format(totals.HistoryCents)), nil
}

// totalLine reports the current total after a write. The entry is already
// committed, so a failed lookup only shortens the reply.
func (s *CommandService) totalLine(ctx context.Context, userID string) string {
	totals, err := s.ledger.Totals(ctx, userID)
	if err != nil {
		log.Printf("[COMMAND] Totals after write failed for user %s: %v", userID, err)
		return "Total unavailable right now."
	}
	return "Total now: " + s.format(totals.CurrentCents)
}

func (s *CommandService) query(ctx context.Context, userID string, sender Sender, args string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		n = s.config.DefaultQueryLimit
	}
	limit := s.config.ClampLimit(n)

	entries, err := s.ledger.RecentEntries(ctx, userID, limit)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "No entries yet. Use /save to start!", nil
	}

	totals, err := s.ledger.Totals(ctx, userID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Last %d entries for %s:\n", len(entries), sender.displayName())
	for _, e := range entries {
		sign := "+"
		if e.AmountCents < 0 {
			sign = "-"
		}
		fmt.Fprintf(&b, "%s %s [%s] %s", sign, s.format(abs(e.AmountCents)), e.Kind, e.CreatedAt.Format("2006-01-02 15:04"))
		if e.Reason != nil {
			fmt.Fprintf(&b, " - %s", *e.Reason)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nCurrent total: %s\nHistory total: %s\nGrand total: %s",
		s.format(totals.CurrentCents), s.format(totals.HistoryCents), s.format(totals.GrandCents()))
	return b.String(), nil
}

func (s *CommandService) format(cents int64) string {
	return money.New(cents, s.currency).Display()
}

func (s *CommandService) checkRateLimit(ctx context.Context, externalID int64) error {
	if s.redis == nil || s.config.CommandRateLimit <= 0 {
		return nil
	}

	key := fmt.Sprintf("stash:ratelimit:%d", externalID)
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("[COMMAND] Rate limit check failed, allowing command: %v", err)
		return nil
	}
	if count == 1 {
		if err := s.redis.Expire(ctx, key, s.config.RateLimitWindow).Err(); err != nil {
			// A counter without a TTL would never reset.
			log.Printf("[COMMAND] Failed to set rate limit window for %s: %v", key, err)
			if err := s.redis.Del(ctx, key).Err(); err != nil {
				log.Printf("[COMMAND] Failed to drop rate limit counter %s: %v", key, err)
			}
		}
	}

	if count > int64(s.config.CommandRateLimit) {
		return ErrRateLimited
	}
	return nil
}

// claimDelivery reports whether this is the first delivery of the message.
// Redeliveries would otherwise append the same entry twice.
func (s *CommandService) claimDelivery(ctx context.Context, sender Sender) bool {
	if s.redis == nil || sender.MessageID == 0 {
		return true
	}

	first, err := s.redis.SetNX(ctx, deliveryKey(sender), "1", deliveryTTL).Result()
	if err != nil {
		log.Printf("[COMMAND] Delivery check failed, processing message: %v", err)
		return true
	}
	return first
}

// releaseDelivery forgets a claimed message so a redelivery is processed again.
func (s *CommandService) releaseDelivery(ctx context.Context, sender Sender) {
	if s.redis == nil || sender.MessageID == 0 {
		return
	}
	if err := s.redis.Del(ctx, deliveryKey(sender)).Err(); err != nil {
		log.Printf("[COMMAND] Failed to release delivery %d from external id %d: %v", sender.MessageID, sender.ExternalID, err)
	}
}

func deliveryKey(sender Sender) string {
	return fmt.Sprintf("stash:delivery:%d:%d", sender.ExternalID, sender.MessageID)
}

func reasonLine(reason *string) string {
	if reason == nil {
		return ""
	}
	return "Reason: " + *reason + "\n"
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
