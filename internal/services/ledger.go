package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"meufin/internal/amqp"
	"meufin/internal/core"
	"meufin/internal/export"
	"meufin/internal/metrics"
	"meufin/internal/sheets"
	"meufin/internal/telemetry"
)

type (
	// TransactionStore is the transaction collection.
	TransactionStore interface {
		Put(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		PutMany(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error)
		Get(ctx context.Context, id int64) (core.Transaction, error)
		GetAll(ctx context.Context) ([]core.Transaction, error)
		Delete(ctx context.Context, id int64) error
		Clear(ctx context.Context) error
	}

	// ConfigStore is the singleton configuration record.
	ConfigStore interface {
		GetOrDefault(ctx context.Context) (core.Configuration, error)
		Put(ctx context.Context, cfg core.Configuration) error
	}

	// EventPublisher announces committed mutations. Failures are logged, never
	// returned to the user.
	EventPublisher interface {
		PublishTransactionEvent(ctx context.Context, evt *amqp.TransactionEvent) error
	}
)

// AppState is everything a page needs, loaded fresh per request.
type AppState struct {
	Transactions []core.Transaction `json:"transactions"`
	Metrics      core.Metrics       `json:"metrics"`
	Config       core.Configuration `json:"config"`
}

// CreateRequest is the transaction form. Amount accepts numbers and pt-BR
// strings ("1.234,56").
type CreateRequest struct {
	Kind         string `json:"tipo"`
	Category     string `json:"categoria"`
	Description  string `json:"descricao"`
	Amount       any    `json:"valor"`
	Date         string `json:"data"`
	Recurring    bool   `json:"fixo"`
	Notes        string `json:"anotacoes"`
	Installments int    `json:"parcelas"`
}

// LedgerService orchestrates transaction and configuration changes across
// SQLite and AMQP.
type LedgerService struct {
	txs      TransactionStore
	config   ConfigStore
	events   EventPublisher
	recorder telemetry.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

func NewLedgerService(txs TransactionStore, config ConfigStore, events EventPublisher, recorder telemetry.Recorder, logger *slog.Logger) *LedgerService {
	if recorder == nil {
		recorder = telemetry.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{txs: txs, config: config, events: events, recorder: recorder, logger: logger, now: time.Now}
}

// Create stores the transaction, expanded into monthly installments when
// Installments > 1. Nothing is stored if any installment is invalid.
func (s *LedgerService) Create(ctx context.Context, req CreateRequest) ([]core.Transaction, error) {
	cfg, err := s.config.GetOrDefault(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	base, err := req.transaction(cfg.Categories)
	if err != nil {
		return nil, err
	}
	base.CreatedAt = s.now().UTC()
	if err := base.Validate(); err != nil {
		return nil, err
	}

	n := req.Installments
	if n == 0 {
		n = 1
	}
	batch, err := core.ExpandInstallments(base, n)
	if err != nil {
		return nil, err
	}

	var saved []core.Transaction
	if len(batch) == 1 {
		tx, err := s.txs.Put(ctx, batch[0])
		if err != nil {
			return nil, fmt.Errorf("save transaction: %w", err)
		}
		saved = []core.Transaction{tx}
	} else {
		saved, err = s.txs.PutMany(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("save installments: %w", err)
		}
	}
	s.recorder.TransactionsCreated(len(saved))
	s.publish(ctx, amqp.ActionCreated, idsOf(saved)...)
	return saved, nil
}

func (r CreateRequest) transaction(categories []string) (core.Transaction, error) {
	kind, err := core.ParseKind(r.Kind)
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := parseAmount(r.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(r.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	category := strings.TrimSpace(r.Category)
	if match, ok := core.MatchCategory(category, categories); ok {
		category = match
	}
	return core.Transaction{
		Kind:        kind,
		Category:    category,
		Description: strings.TrimSpace(r.Description),
		Amount:      amount,
		Date:        date,
		Recurring:   r.Recurring,
		Notes:       strings.TrimSpace(r.Notes),
	}, nil
}

func parseAmount(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case string:
		return core.ParseAmount(x)
	case float64:
		return core.ParseAmount(strconv.FormatFloat(x, 'f', -1, 64))
	case int:
		return core.ParseAmount(strconv.Itoa(x))
	case decimal.Decimal:
		return core.ParseAmount(x.String())
	}
	return decimal.Zero, core.ErrInvalidAmount
}

func (s *LedgerService) Delete(ctx context.Context, id int64) error {
	if err := s.txs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.recorder.TransactionDeleted()
	s.publish(ctx, amqp.ActionDeleted, id)
	return nil
}

// All returns every stored transaction in storage order.
func (s *LedgerService) All(ctx context.Context) ([]core.Transaction, error) {
	txs, err := s.txs.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// List applies the period filter, newest first, capped at core.ListLimit.
func (s *LedgerService) List(ctx context.Context, period core.Period) ([]core.Transaction, error) {
	txs, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return core.FilterTransactions(txs, period, s.now(), core.ListLimit), nil
}

// State loads transactions and configuration concurrently and derives the
// metrics from the full transaction list.
func (s *LedgerService) State(ctx context.Context) (AppState, error) {
	var st AppState
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := s.All(gctx)
		st.Transactions = txs
		return err
	})
	g.Go(func() error {
		cfg, err := s.Config(gctx)
		st.Config = cfg
		return err
	})
	if err := g.Wait(); err != nil {
		return AppState{}, err
	}
	st.Metrics = metrics.Compute(st.Transactions, s.now())
	return st, nil
}

func (s *LedgerService) Config(ctx context.Context) (core.Configuration, error) {
	cfg, err := s.config.GetOrDefault(ctx)
	if err != nil {
		return core.Configuration{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// SaveConfig normalizes and replaces the configuration.
func (s *LedgerService) SaveConfig(ctx context.Context, cfg core.Configuration) (core.Configuration, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return core.Configuration{}, err
	}
	if err := s.config.Put(ctx, cfg); err != nil {
		return core.Configuration{}, fmt.Errorf("save config: %w", err)
	}
	return cfg, nil
}

// ResetConfig stores and returns the defaults.
func (s *LedgerService) ResetConfig(ctx context.Context) (core.Configuration, error) {
	return s.SaveConfig(ctx, core.DefaultConfiguration())
}

// SetTheme persists the theme toggle.
func (s *LedgerService) SetTheme(ctx context.Context, theme string) (core.Configuration, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return core.Configuration{}, err
	}
	cfg.Theme = theme
	return s.SaveConfig(ctx, cfg)
}

// GrantNotifications records the user's permission for notifications.
func (s *LedgerService) GrantNotifications(ctx context.Context) (core.Configuration, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return core.Configuration{}, err
	}
	cfg.Notifications.PermissionGranted = true
	return s.SaveConfig(ctx, cfg)
}

func (s *LedgerService) ExportCSV(ctx context.Context, w io.Writer) error {
	txs, err := s.All(ctx)
	if err != nil {
		return err
	}
	return export.WriteCSV(w, txs)
}

func (s *LedgerService) ExportBackup(ctx context.Context, w io.Writer) error {
	txs, err := s.All(ctx)
	if err != nil {
		return err
	}
	return export.WriteBackup(w, txs)
}

// Import upserts every valid backup entry in one database transaction.
// Entries with an ID replace the stored record with that ID.
func (s *LedgerService) Import(ctx context.Context, r io.Reader) (export.ImportResult, error) {
	res, err := export.ReadBackup(r)
	if err != nil {
		return export.ImportResult{}, err
	}
	for _, sk := range res.Skipped {
		s.logger.WarnContext(ctx, "Skipping backup entry", "index", sk.Index, "reason", sk.Reason)
	}
	if len(res.Transactions) == 0 {
		return res, nil
	}

	now := s.now().UTC()
	for i := range res.Transactions {
		if res.Transactions[i].CreatedAt.IsZero() {
			res.Transactions[i].CreatedAt = now
		}
	}
	saved, err := s.txs.PutMany(ctx, res.Transactions)
	if err != nil {
		return export.ImportResult{}, fmt.Errorf("import transactions: %w", err)
	}
	res.Transactions = saved
	s.recorder.TransactionsCreated(len(saved))
	s.publish(ctx, amqp.ActionImported, idsOf(saved)...)
	return res, nil
}

// Clear removes every transaction.
func (s *LedgerService) Clear(ctx context.Context) error {
	if err := s.txs.Clear(ctx); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	s.publish(ctx, amqp.ActionCleared)
	return nil
}

// Mirror copies every transaction to the spreadsheet mirror.
func (s *LedgerService) Mirror(ctx context.Context, m sheets.TransactionMirror) (sheets.MirrorResult, error) {
	if m == nil {
		return sheets.MirrorResult{}, errors.New("spreadsheet mirror not configured")
	}
	txs, err := s.All(ctx)
	if err != nil {
		return sheets.MirrorResult{}, err
	}
	res, err := m.Mirror(ctx, txs)
	if err != nil {
		return sheets.MirrorResult{}, fmt.Errorf("mirror transactions: %w", err)
	}
	return res, nil
}

func (s *LedgerService) publish(ctx context.Context, action amqp.EventAction, ids ...int64) {
	if s.events == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping event", "action", action)
		return
	}
	if err := s.events.PublishTransactionEvent(ctx, amqp.NewTransactionEvent(action, ids...)); err != nil {
		// the mutation is already committed
		s.logger.ErrorContext(ctx, "Failed to publish transaction event", "action", action, "ids", ids, "error", err)
	}
}

func idsOf(txs []core.Transaction) []int64 {
	out := make([]int64, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}
