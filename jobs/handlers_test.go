package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rentique-erp/rentique-erp/internal/cashbox"
)

type stubScanner struct {
	stamped int
	got     time.Time
	err     error
}

func (s *stubScanner) MarkOverdueSnapshots(_ context.Context, now time.Time) (int, error) {
	s.got = now
	return s.stamped, s.err
}

type stubAuditor struct {
	reports []cashbox.RecalcReport
}

func (s *stubAuditor) RecalculateAll(_ context.Context) ([]cashbox.RecalcReport, error) {
	return s.reports, nil
}

func TestOverdueScanHandlerUsesPayloadTime(t *testing.T) {
	scanner := &stubScanner{stamped: 3}
	handler := NewOverdueScanHandler(scanner, nil, slog.Default())

	as := time.Date(2026, 5, 2, 6, 0, 0, 0, time.UTC)
	task, err := NewOverdueScanTask(as)
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task))
	require.True(t, scanner.got.Equal(as))
}

func TestOverdueScanHandlerPropagatesErrors(t *testing.T) {
	scanner := &stubScanner{err: errors.New("db down")}
	handler := NewOverdueScanHandler(scanner, nil, slog.Default())

	task, err := NewOverdueScanTask(time.Now())
	require.NoError(t, err)
	require.Error(t, handler(context.Background(), task))
}

func TestCashboxAuditHandlerReportsDrift(t *testing.T) {
	auditor := &stubAuditor{reports: []cashbox.RecalcReport{
		{CashboxID: 1, Difference: 0},
		{CashboxID: 2, PreviousBalance: 900, CalculatedBalance: 1000, Difference: 100},
	}}
	handler := NewCashboxAuditHandler(auditor, nil, slog.Default())

	require.NoError(t, handler(context.Background(), NewCashboxAuditTask()))
}
