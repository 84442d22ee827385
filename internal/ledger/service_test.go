package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockroom/stockroom/internal/shared"
)

type memoryRepo struct {
	batches     []Batch
	withdrawals []WithdrawalRecord
	nextID      int
	updateErrAt int // fail the nth UpdateBatch call when > 0
	updateCalls int
}

func newMemoryRepo(batches ...Batch) *memoryRepo {
	return &memoryRepo{batches: batches}
}

func (m *memoryRepo) ListBatches(_ context.Context, filter BatchFilter) ([]Batch, error) {
	out := []Batch{}
	for _, b := range m.batches {
		if filter.Name == "" || b.Name == filter.Name {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memoryRepo) GetBatch(_ context.Context, id string) (Batch, error) {
	for _, b := range m.batches {
		if b.ID == id {
			return b, nil
		}
	}
	return Batch{}, ErrBatchNotFound
}

func (m *memoryRepo) CreateBatch(_ context.Context, b Batch) (Batch, error) {
	m.nextID++
	b.ID = fmt.Sprintf("batch-%d", m.nextID)
	m.batches = append(m.batches, b)
	return b, nil
}

func (m *memoryRepo) UpdateBatch(_ context.Context, b Batch) (Batch, error) {
	m.updateCalls++
	if m.updateErrAt > 0 && m.updateCalls == m.updateErrAt {
		return Batch{}, errors.New("connection reset")
	}
	for i := range m.batches {
		if m.batches[i].ID == b.ID {
			m.batches[i] = b
			return b, nil
		}
	}
	return Batch{}, ErrBatchNotFound
}

func (m *memoryRepo) DeleteBatch(_ context.Context, id string) error {
	for i := range m.batches {
		if m.batches[i].ID == id {
			m.batches = append(m.batches[:i], m.batches[i+1:]...)
			return nil
		}
	}
	return ErrBatchNotFound
}

func (m *memoryRepo) ListWithdrawals(_ context.Context, filter WithdrawalFilter) ([]WithdrawalRecord, int, error) {
	out := []WithdrawalRecord{}
	for _, rec := range m.withdrawals {
		if filter.Name == "" || rec.Name == filter.Name {
			out = append(out, rec)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) CreateWithdrawal(_ context.Context, rec WithdrawalRecord) (WithdrawalRecord, error) {
	m.nextID++
	rec.ID = fmt.Sprintf("wd-%d", m.nextID)
	m.withdrawals = append(m.withdrawals, rec)
	return rec, nil
}

type memoryAudit struct {
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type fakeLocker struct {
	acquired []string
	released int
	busy     bool
}

func (l *fakeLocker) Acquire(_ context.Context, name string) (func(context.Context) error, error) {
	if l.busy {
		return nil, shared.ErrItemBusy
	}
	l.acquired = append(l.acquired, name)
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

type fakeBumper struct{ bumps int }

func (b *fakeBumper) Bump(context.Context) error {
	b.bumps++
	return nil
}

func newTestService(repo *memoryRepo) (*Service, *memoryAudit, *fakeLocker) {
	audit := &memoryAudit{}
	locker := &fakeLocker{}
	return NewService(repo, audit, locker, nil), audit, locker
}

func TestServiceWithdrawHappyPath(t *testing.T) {
	repo := newMemoryRepo(widgetBatches()...)
	svc, audit, locker := newTestService(repo)

	rec, plan, err := svc.Withdraw(context.Background(), WithdrawalInput{
		Name: "Widget", Quantity: dec("6"), Date: "2024-03-01", Actor: "alice",
	}, shared.RoleManager)
	require.NoError(t, err)
	require.True(t, rec.TotalCost.Equal(dec("12.50")), "total cost %s", rec.TotalCost)
	require.Len(t, plan.Lines, 2)

	// Oldest batch drained to zero but retained; newer batch reduced.
	b1, err := repo.GetBatch(context.Background(), "b1")
	require.NoError(t, err)
	require.True(t, b1.Quantity.IsZero())
	b2, err := repo.GetBatch(context.Background(), "b2")
	require.NoError(t, err)
	require.True(t, b2.Quantity.Equal(dec("2")))

	require.Equal(t, []string{"Widget"}, locker.acquired)
	require.Equal(t, 1, locker.released)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "ledger:withdraw", audit.logs[0].Action)
	require.Equal(t, "alice", audit.logs[0].Actor)
}

func TestServiceWithdrawInsufficientLeavesStateUntouched(t *testing.T) {
	repo := newMemoryRepo(widgetBatches()...)
	svc, _, locker := newTestService(repo)

	_, _, err := svc.Withdraw(context.Background(), WithdrawalInput{
		Name: "Widget", Quantity: dec("10"), Date: "2024-03-01",
	}, shared.RoleWarehouse)
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.True(t, insufficient.Available.Equal(dec("8")))

	require.Zero(t, repo.updateCalls, "no batch may be touched on a rejected withdrawal")
	require.Empty(t, repo.withdrawals)
	require.Equal(t, 1, locker.released, "lock released even on failure")
}

func TestServiceWithdrawUnknownItem(t *testing.T) {
	svc, _, _ := newTestService(newMemoryRepo())
	_, _, err := svc.Withdraw(context.Background(), WithdrawalInput{
		Name: "Ghost", Quantity: dec("1"), Date: "2024-03-01",
	}, shared.RoleManager)
	require.ErrorIs(t, err, ErrUnknownItem)
}

func TestServiceWithdrawValidation(t *testing.T) {
	svc, _, _ := newTestService(newMemoryRepo(widgetBatches()...))
	_, _, err := svc.Withdraw(context.Background(), WithdrawalInput{Name: "Widget", Quantity: dec("0"), Date: "2024-03-01"}, shared.RoleManager)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, _, err = svc.Withdraw(context.Background(), WithdrawalInput{Name: "Widget", Quantity: dec("1"), Date: "03/01/2024"}, shared.RoleManager)
	require.ErrorIs(t, err, ErrInvalidDate)
}

func TestServiceWithdrawItemBusy(t *testing.T) {
	repo := newMemoryRepo(widgetBatches()...)
	svc, _, locker := newTestService(repo)
	locker.busy = true

	_, _, err := svc.Withdraw(context.Background(), WithdrawalInput{
		Name: "Widget", Quantity: dec("1"), Date: "2024-03-01",
	}, shared.RoleManager)
	require.ErrorIs(t, err, shared.ErrItemBusy)
	require.Zero(t, repo.updateCalls)
}

func TestServiceWithdrawPartialApplyFailure(t *testing.T) {
	repo := newMemoryRepo(widgetBatches()...)
	repo.updateErrAt = 2
	svc, _, _ := newTestService(repo)

	_, _, err := svc.Withdraw(context.Background(), WithdrawalInput{
		Name: "Widget", Quantity: dec("6"), Date: "2024-03-01",
	}, shared.RoleManager)
	require.Error(t, err)
	require.Contains(t, err.Error(), "apply depletion plan")
	require.Empty(t, repo.withdrawals, "no record may be written for a failed withdrawal")
}

func TestServiceSaveBatchPricePerRole(t *testing.T) {
	repo := newMemoryRepo()
	svc, audit, _ := newTestService(repo)

	// Warehouse creates without a stored price even if one was sent.
	created, err := svc.SaveBatch(context.Background(), BatchInput{
		Name: "Widget", Quantity: dec("5"), UnitPrice: dec("2.00"), PurchaseDate: "2024-01-01", Actor: "bob",
	}, shared.RoleWarehouse)
	require.NoError(t, err)
	require.True(t, created.Price.IsZero())

	// Manager sets the price afterwards.
	priced, err := svc.SaveBatch(context.Background(), BatchInput{
		ID: created.ID, Name: "Widget", Quantity: dec("5"), UnitPrice: dec("2.00"), PurchaseDate: "2024-01-01", Actor: "alice",
	}, shared.RoleManager)
	require.NoError(t, err)
	require.True(t, priced.Price.Equal(dec("2.00")))

	// A warehouse update keeps the stored price intact.
	updated, err := svc.SaveBatch(context.Background(), BatchInput{
		ID: created.ID, Name: "Widget", Quantity: dec("4"), UnitPrice: dec("9.99"), PurchaseDate: "2024-01-01", Actor: "bob",
	}, shared.RoleWarehouse)
	require.NoError(t, err)
	require.True(t, updated.Price.Equal(dec("2.00")), "price leaked through warehouse update: %s", updated.Price)

	require.Len(t, audit.logs, 3)
	require.Equal(t, "ledger:batch.create", audit.logs[0].Action)
	require.Equal(t, "ledger:batch.update", audit.logs[1].Action)
}

func TestServiceSaveBatchValidation(t *testing.T) {
	svc, _, _ := newTestService(newMemoryRepo())
	_, err := svc.SaveBatch(context.Background(), BatchInput{Name: "  ", Quantity: dec("1"), PurchaseDate: "2024-01-01"}, shared.RoleManager)
	require.Error(t, err)
	_, err = svc.SaveBatch(context.Background(), BatchInput{Name: "Widget", Quantity: dec("-1"), PurchaseDate: "2024-01-01"}, shared.RoleManager)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.SaveBatch(context.Background(), BatchInput{Name: "Widget", Quantity: dec("1"), PurchaseDate: "2024-1-1"}, shared.RoleManager)
	require.ErrorIs(t, err, ErrInvalidDate)
}

func TestServiceDeleteBatchRequiresManager(t *testing.T) {
	repo := newMemoryRepo(widgetBatches()...)
	svc, audit, _ := newTestService(repo)

	err := svc.DeleteBatch(context.Background(), "b1", shared.RoleWarehouse, "bob")
	require.ErrorIs(t, err, ErrNotPermitted)
	require.Len(t, repo.batches, 2)

	err = svc.DeleteBatch(context.Background(), "b1", shared.RoleManager, "alice")
	require.NoError(t, err)
	require.Len(t, repo.batches, 1)
	require.Equal(t, "ledger:batch.delete", audit.logs[0].Action)
}

func TestServiceSearchAndNames(t *testing.T) {
	repo := newMemoryRepo(
		Batch{ID: "w1", Name: "Widget", Quantity: dec("8"), PurchaseDate: "2024-01-01"},
		Batch{ID: "g1", Name: "Gadget", Quantity: dec("2"), PurchaseDate: "2024-01-02",
			CustomValues: map[string]string{"bin": "A-17"}},
	)
	svc, _, _ := newTestService(repo)

	groups, err := svc.Search(context.Background(), "a-17")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, "Gadget", groups[0].Name)

	names, err := svc.ItemNames(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Widget", "Gadget"}, names)
}

func TestServiceDetail(t *testing.T) {
	repo := newMemoryRepo(widgetBatches()...)
	repo.withdrawals = []WithdrawalRecord{
		{ID: "wd-1", Name: "Widget", Quantity: dec("2"), TotalCost: dec("4.00"), Date: "2024-02-15"},
	}
	svc, _, _ := newTestService(repo)

	detail, err := svc.Detail(context.Background(), "Widget")
	require.NoError(t, err)
	require.Equal(t, "Widget", detail.Group.Name)
	require.Equal(t, 2, detail.Group.BatchCount)
	require.Len(t, detail.Withdrawals, 1)

	_, err = svc.Detail(context.Background(), "Ghost")
	require.ErrorIs(t, err, ErrUnknownItem)
}

func TestServiceWithdrawals(t *testing.T) {
	repo := newMemoryRepo()
	for i := 0; i < 3; i++ {
		repo.withdrawals = append(repo.withdrawals, WithdrawalRecord{
			ID: fmt.Sprintf("wd-%d", i), Name: "Widget", Quantity: decimal.NewFromInt(1), Date: "2024-02-01",
		})
	}
	svc, _, _ := newTestService(repo)

	records, pagination, err := svc.Withdrawals(context.Background(), "Widget", 1, 20)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, 3, pagination.Total)
	require.Equal(t, 1, pagination.TotalPages)
}

func TestServiceMutationsBumpInvalidator(t *testing.T) {
	repo := newMemoryRepo(widgetBatches()...)
	bumper := &fakeBumper{}
	svc := NewService(repo, nil, nil, bumper)

	_, err := svc.SaveBatch(context.Background(), BatchInput{
		Name: "Widget", Quantity: dec("1"), UnitPrice: dec("3.00"), PurchaseDate: "2024-03-01",
	}, shared.RoleManager)
	require.NoError(t, err)
	require.Equal(t, 1, bumper.bumps)

	_, _, err = svc.Withdraw(context.Background(), WithdrawalInput{
		Name: "Widget", Quantity: dec("1"), Date: "2024-03-02",
	}, shared.RoleManager)
	require.NoError(t, err)
	require.Equal(t, 2, bumper.bumps)

	require.NoError(t, svc.DeleteBatch(context.Background(), "b1", shared.RoleManager, "alice"))
	require.Equal(t, 3, bumper.bumps)

	// Rejected withdrawals leave the cache version alone.
	_, _, err = svc.Withdraw(context.Background(), WithdrawalInput{
		Name: "Widget", Quantity: dec("100"), Date: "2024-03-02",
	}, shared.RoleManager)
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, 3, bumper.bumps)
}
