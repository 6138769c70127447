package custody

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rentique-erp/rentique-erp/internal/shared"
)

type memoryRepo struct {
	custodies map[int64]*Custody
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{custodies: make(map[int64]*Custody)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) Get(_ context.Context, id int64) (*Custody, error) {
	c, ok := r.custodies[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (r *memoryRepo) ListByOrder(_ context.Context, orderID int64) ([]Custody, error) {
	var out []Custody
	for _, c := range r.custodies {
		if c.OrderID == orderID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memoryRepo) Create(_ context.Context, c Custody) (int64, error) {
	r.nextID++
	c.ID = r.nextID
	r.custodies[c.ID] = &c
	return c.ID, nil
}

func (r *memoryRepo) ResolveCAS(_ context.Context, id int64, to Status, reason *string, ackPhotos []string, at time.Time) (bool, error) {
	c, ok := r.custodies[id]
	if !ok || c.Status != StatusPending {
		return false, nil
	}
	c.Status = to
	c.ReasonOfKept = reason
	c.AckPhotos = ackPhotos
	c.ResolvedAt = &at
	return true, nil
}

func (r *memoryRepo) CountOpenByOrder(_ context.Context, orderID int64) (int, error) {
	var n int
	for _, c := range r.custodies {
		if c.OrderID == orderID && c.Status == StatusPending {
			n++
		}
	}
	return n, nil
}

type stubOrders struct {
	rental map[int64]bool
}

func (s *stubOrders) IsRental(_ context.Context, orderID int64) (bool, error) {
	return s.rental[orderID], nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	orders := &stubOrders{rental: map[int64]bool{1: true, 2: false}}
	return NewService(repo, orders, nil, slog.Default()), repo
}

func moneyCustody() OpenCustodyRequest {
	return OpenCustodyRequest{Type: TypeMoney, Amount: 500}
}

func ack() ResolveCustodyRequest {
	return ResolveCustodyRequest{Action: ActionReturnedToUser, AckPhotos: []string{"ack-1.jpg"}}
}

func TestOpenRequiresRentalOrder(t *testing.T) {
	svc, _ := newTestService()

	c, err := svc.Open(context.Background(), 1, moneyCustody())
	require.NoError(t, err)
	require.Equal(t, StatusPending, c.Status)

	_, err = svc.Open(context.Background(), 2, moneyCustody())
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestOpenValidatesEvidenceByType(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Open(context.Background(), 1, OpenCustodyRequest{Type: TypeMoney})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Open(context.Background(), 1, OpenCustodyRequest{Type: TypeDocument})
	require.ErrorIs(t, err, shared.ErrValidation)

	c, err := svc.Open(context.Background(), 1, OpenCustodyRequest{
		Type:   TypePhysicalItem,
		Photos: []string{"watch.jpg"},
	})
	require.NoError(t, err)
	require.Equal(t, TypePhysicalItem, c.Type)
}

func TestResolveIsOneShot(t *testing.T) {
	svc, _ := newTestService()
	c, err := svc.Open(context.Background(), 1, moneyCustody())
	require.NoError(t, err)

	resolved, err := svc.ResolveCustody(context.Background(), c.ID, ack())
	require.NoError(t, err)
	require.Equal(t, StatusReturned, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = svc.ResolveCustody(context.Background(), c.ID, ack())
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestForfeitNeedsReason(t *testing.T) {
	svc, _ := newTestService()
	c, err := svc.Open(context.Background(), 1, moneyCustody())
	require.NoError(t, err)

	req := ResolveCustodyRequest{Action: ActionForfeit, AckPhotos: []string{"ack-1.jpg"}}
	_, err = svc.ResolveCustody(context.Background(), c.ID, req)
	require.ErrorIs(t, err, shared.ErrValidation)

	reason := "garment returned torn"
	req.ReasonOfKept = &reason
	resolved, err := svc.ResolveCustody(context.Background(), c.ID, req)
	require.NoError(t, err)
	require.Equal(t, StatusLost, resolved.Status)
	require.Equal(t, &reason, resolved.ReasonOfKept)
}

func TestResolveAlwaysNeedsAckPhoto(t *testing.T) {
	svc, _ := newTestService()
	c, err := svc.Open(context.Background(), 1, moneyCustody())
	require.NoError(t, err)

	_, err = svc.ResolveCustody(context.Background(), c.ID, ResolveCustodyRequest{Action: ActionReturnedToUser})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestHasOpenTracksPendingOnly(t *testing.T) {
	svc, _ := newTestService()

	open, err := svc.HasOpen(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, open)

	c, err := svc.Open(context.Background(), 1, moneyCustody())
	require.NoError(t, err)

	open, err = svc.HasOpen(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, open)

	_, err = svc.ResolveCustody(context.Background(), c.ID, ack())
	require.NoError(t, err)

	open, err = svc.HasOpen(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, open)
}
