package cashbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rentique-erp/rentique-erp/internal/shared"
)

// Auditor records deliberate balance corrections.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type Service struct {
	repo      Repository
	locks     *shared.Mutex
	audit     Auditor
	logger    *slog.Logger
	summaries singleflight.Group
	now       func() time.Time
}

func NewService(repo Repository, locks *shared.Mutex, audit Auditor, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		locks:  locks,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

// ApplyTransaction writes one ledger line and moves the balance under the
// cashbox's writer lock, so concurrent payments on the same till never lose
// an update.
func (s *Service) ApplyTransaction(ctx context.Context, cashboxID int64, t Transaction) (*Transaction, error) {
	if t.Amount == 0 {
		return nil, fmt.Errorf("zero-amount transaction: %w", shared.ErrValidation)
	}
	if (t.Type == TxnIncome || t.Type == TxnExpense) && t.Amount < 0 {
		return nil, fmt.Errorf("%s amount must be positive: %w", t.Type, shared.ErrValidation)
	}
	t.CashboxID = cashboxID

	release, err := s.lock(ctx, cashboxID)
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		box, err := repo.Get(ctx, cashboxID)
		if err != nil {
			return err
		}
		if t.ID, err = repo.InsertTransaction(ctx, t); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return repo.UpdateBalance(ctx, cashboxID, box.CurrentBalance+t.Delta())
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("cashbox %d: %w", cashboxID, shared.ErrNotFound)
		}
		return nil, err
	}
	return &t, nil
}

// RecordIncome is the payment ledger's sink: settled payments land here as
// income lines.
func (s *Service) RecordIncome(ctx context.Context, cashboxID int64, amount float64, reference string) error {
	_, err := s.ApplyTransaction(ctx, cashboxID, Transaction{
		Type:      TxnIncome,
		Amount:    amount,
		Reference: reference,
	})
	return err
}

func (s *Service) RecordExpense(ctx context.Context, cashboxID int64, amount float64, reference, description string) error {
	_, err := s.ApplyTransaction(ctx, cashboxID, Transaction{
		Type:        TxnExpense,
		Amount:      amount,
		Reference:   reference,
		Description: description,
	})
	return err
}

// DailySummary folds one day of the log. Concurrent requests for the same
// cashbox and day collapse into a single computation.
func (s *Service) DailySummary(ctx context.Context, cashboxID int64, day time.Time) (*DailySummary, error) {
	date := day.Format("2006-01-02")
	key := strconv.FormatInt(cashboxID, 10) + ":" + date
	v, err, _ := s.summaries.Do(key, func() (interface{}, error) {
		opening, err := s.repo.BalanceBefore(ctx, cashboxID, day)
		if err != nil {
			return nil, err
		}
		income, expense, count, err := s.repo.DayTotals(ctx, cashboxID, day)
		if err != nil {
			return nil, err
		}
		return &DailySummary{
			CashboxID: cashboxID,
			Date:      date,
			Opening:   opening,
			Income:    income,
			Expense:   expense,
			Closing:   opening + income - expense,
			Count:     count,
		}, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("cashbox %d: %w", cashboxID, shared.ErrNotFound)
		}
		return nil, err
	}
	return v.(*DailySummary), nil
}

// Recalculate re-derives the balance from initial_balance and the full log
// and reports the drift. It never writes; fixing drift is a separate,
// audited correction.
func (s *Service) Recalculate(ctx context.Context, cashboxID int64) (*RecalcReport, error) {
	box, err := s.repo.Get(ctx, cashboxID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("cashbox %d: %w", cashboxID, shared.ErrNotFound)
		}
		return nil, err
	}

	calculated := box.InitialBalance
	count, err := s.repo.StreamTransactions(ctx, cashboxID, func(t Transaction) error {
		calculated += t.Delta()
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}

	report := &RecalcReport{
		CashboxID:         cashboxID,
		PreviousBalance:   box.CurrentBalance,
		CalculatedBalance: calculated,
		Difference:        calculated - box.CurrentBalance,
		TransactionCount:  count,
	}
	if report.Difference != 0 {
		s.logger.Warn("cashbox balance drift",
			slog.Int64("cashbox_id", cashboxID),
			slog.Float64("difference", report.Difference))
	}
	return report, nil
}

// RecalculateAll runs the drift report over every cashbox. Used by the
// nightly audit job; each report is independent, so a failing cashbox does
// not stop the rest.
func (s *Service) RecalculateAll(ctx context.Context) ([]RecalcReport, error) {
	ids, err := s.repo.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RecalcReport, 0, len(ids))
	for _, id := range ids {
		report, err := s.Recalculate(ctx, id)
		if err != nil {
			s.logger.Error("recalculate cashbox", slog.Int64("cashbox_id", id), slog.Any("error", err))
			continue
		}
		out = append(out, *report)
	}
	return out, nil
}

// Correct writes a deliberate, audited adjustment line. This is the only
// sanctioned way to make the stored balance agree with a recalculation.
func (s *Service) Correct(ctx context.Context, cashboxID int64, amount float64, description string) (*Transaction, error) {
	if description == "" {
		return nil, fmt.Errorf("correction needs a description: %w", shared.ErrValidation)
	}
	t, err := s.ApplyTransaction(ctx, cashboxID, Transaction{
		Type:        TxnCorrection,
		Amount:      amount,
		Reference:   "manual-correction",
		Description: description,
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "cashbox.correct", cashboxID, map[string]any{
		"amount":      amount,
		"description": description,
	})
	return t, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Cashbox, error) {
	box, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("cashbox %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return box, nil
}

func (s *Service) ListTransactions(ctx context.Context, cashboxID int64, page, perPage int) ([]Transaction, shared.Pagination, error) {
	rows, total, err := s.repo.ListTransactions(ctx, cashboxID, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(page, perPage, total), nil
}

func (s *Service) lock(ctx context.Context, cashboxID int64) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	return s.locks.Acquire(ctx, shared.CashboxLockKey(cashboxID))
}

func (s *Service) recordAudit(ctx context.Context, action string, cashboxID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "cashbox",
		EntityID: strconv.FormatInt(cashboxID, 10),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}
