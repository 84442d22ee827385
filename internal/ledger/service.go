package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/stockroom/stockroom/internal/shared"
)

// ErrNotPermitted indicates the acting role lacks the required capability.
var ErrNotPermitted = errors.New("ledger: role not permitted")

// BatchFilter narrows batch listings.
type BatchFilter struct {
	Name string
}

// WithdrawalFilter narrows withdrawal listings.
type WithdrawalFilter struct {
	Name    string
	Page    int
	PerPage int
}

// RepositoryPort abstracts the batch store adapter for the service. Calls are
// independent round trips with no transactionality across them.
type RepositoryPort interface {
	ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error)
	GetBatch(ctx context.Context, id string) (Batch, error)
	CreateBatch(ctx context.Context, b Batch) (Batch, error)
	UpdateBatch(ctx context.Context, b Batch) (Batch, error)
	DeleteBatch(ctx context.Context, id string) error
	ListWithdrawals(ctx context.Context, filter WithdrawalFilter) ([]WithdrawalRecord, int, error)
	CreateWithdrawal(ctx context.Context, rec WithdrawalRecord) (WithdrawalRecord, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// LockPort serializes withdrawals per item name.
type LockPort interface {
	Acquire(ctx context.Context, name string) (func(context.Context) error, error)
}

// InvalidatorPort marks derived read models stale after a ledger mutation.
type InvalidatorPort interface {
	Bump(ctx context.Context) error
}

// Service coordinates ledger operations against the store adapter.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	locker      LockPort
	invalidator InvalidatorPort
}

// NewService builds Service. audit, locker and invalidator may be nil.
func NewService(repo RepositoryPort, audit AuditPort, locker LockPort, invalidator InvalidatorPort) *Service {
	return &Service{repo: repo, audit: audit, locker: locker, invalidator: invalidator}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator != nil {
		_ = s.invalidator.Bump(ctx)
	}
}

// Overview aggregates every batch into per-item groups sorted by total
// quantity descending.
func (s *Service) Overview(ctx context.Context) ([]GroupedItem, error) {
	batches, err := s.repo.ListBatches(ctx, BatchFilter{})
	if err != nil {
		return nil, err
	}
	return SortedGroups(Aggregate(batches)), nil
}

// Search returns the groups matching a free-text query.
func (s *Service) Search(ctx context.Context, query string) ([]GroupedItem, error) {
	groups, err := s.Overview(ctx)
	if err != nil {
		return nil, err
	}
	out := groups[:0]
	for _, g := range groups {
		if MatchQuery(g, query) {
			out = append(out, g)
		}
	}
	return out, nil
}

// ItemNames lists the distinct item names currently on record.
func (s *Service) ItemNames(ctx context.Context) ([]string, error) {
	groups, err := s.Overview(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		names = append(names, g.Name)
	}
	return names, nil
}

// SaveBatch creates or updates one batch. A role without pricing visibility
// never sets a price: updates keep the stored price, new batches start at
// zero.
func (s *Service) SaveBatch(ctx context.Context, input BatchInput, role shared.Role) (Batch, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Batch{}, errors.New("ledger: batch name required")
	}
	if input.Quantity.Sign() < 0 {
		return Batch{}, ErrInvalidQuantity
	}
	if !ValidDate(input.PurchaseDate) {
		return Batch{}, ErrInvalidDate
	}

	batch := Batch{
		ID:           input.ID,
		Name:         name,
		Quantity:     input.Quantity,
		PurchaseDate: input.PurchaseDate,
		CustomValues: input.CustomValues,
	}

	var saved Batch
	var err error
	if input.ID == "" {
		if role.CanViewPricing() {
			batch.Price = input.UnitPrice.Round(4)
		}
		saved, err = s.repo.CreateBatch(ctx, batch)
	} else {
		var existing Batch
		existing, err = s.repo.GetBatch(ctx, input.ID)
		if err != nil {
			return Batch{}, err
		}
		if role.CanViewPricing() {
			batch.Price = input.UnitPrice.Round(4)
		} else {
			batch.Price = existing.Price
		}
		saved, err = s.repo.UpdateBatch(ctx, batch)
	}
	if err != nil {
		return Batch{}, err
	}

	if s.audit != nil {
		action := "ledger:batch.create"
		if input.ID != "" {
			action = "ledger:batch.update"
		}
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    input.Actor,
			Role:     role,
			Action:   action,
			Entity:   "batch",
			EntityID: saved.ID,
			Meta: map[string]any{
				"name":          saved.Name,
				"quantity":      saved.Quantity,
				"purchase_date": saved.PurchaseDate,
			},
		})
	}
	s.invalidate(ctx)
	return saved, nil
}

// DeleteBatch removes a batch entirely, including its history contribution.
// Only privileged roles may do this; the withdrawal path never deletes.
func (s *Service) DeleteBatch(ctx context.Context, id string, role shared.Role, actor string) error {
	if !role.CanDeleteBatches() {
		return ErrNotPermitted
	}
	if err := s.repo.DeleteBatch(ctx, id); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    actor,
			Role:     role,
			Action:   "ledger:batch.delete",
			Entity:   "batch",
			EntityID: id,
		})
	}
	s.invalidate(ctx)
	return nil
}

// Withdraw executes one FIFO stock-out: re-read the item's batches under the
// per-name lock, plan the depletion, apply each batch update, then record the
// withdrawal. A failure while applying leaves the ledger partially updated;
// the caller must reload authoritative state before retrying.
func (s *Service) Withdraw(ctx context.Context, input WithdrawalInput, role shared.Role) (WithdrawalRecord, Plan, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return WithdrawalRecord{}, Plan{}, errors.New("ledger: withdrawal name required")
	}
	if input.Quantity.Sign() <= 0 {
		return WithdrawalRecord{}, Plan{}, ErrInvalidQuantity
	}
	if !ValidDate(input.Date) {
		return WithdrawalRecord{}, Plan{}, ErrInvalidDate
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, name)
		if err != nil {
			return WithdrawalRecord{}, Plan{}, err
		}
		defer func() { _ = release(ctx) }()
	}

	// Fresh snapshot inside the lock; planning against a stale list would
	// double-spend quantities across concurrent sessions.
	batches, err := s.repo.ListBatches(ctx, BatchFilter{Name: name})
	if err != nil {
		return WithdrawalRecord{}, Plan{}, err
	}
	if len(batches) == 0 {
		return WithdrawalRecord{}, Plan{}, ErrUnknownItem
	}

	plan, err := PlanWithdrawal(batches, input.Quantity)
	if err != nil {
		return WithdrawalRecord{}, Plan{}, err
	}

	for _, updated := range consumedBatches(batches, plan) {
		if _, err := s.repo.UpdateBatch(ctx, updated); err != nil {
			return WithdrawalRecord{}, Plan{}, fmt.Errorf("ledger: apply depletion plan: %w", err)
		}
	}

	rec, err := s.repo.CreateWithdrawal(ctx, WithdrawalRecord{
		Name:      name,
		Quantity:  input.Quantity,
		TotalCost: plan.TotalCost,
		Date:      input.Date,
		Notes:     input.Notes,
	})
	if err != nil {
		return WithdrawalRecord{}, Plan{}, fmt.Errorf("ledger: record withdrawal: %w", err)
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    input.Actor,
			Role:     role,
			Action:   "ledger:withdraw",
			Entity:   "withdrawal",
			EntityID: rec.ID,
			Meta: map[string]any{
				"name":     name,
				"quantity": input.Quantity,
				"batches":  len(plan.Lines),
			},
		})
	}
	s.invalidate(ctx)
	return rec, plan, nil
}

// consumedBatches returns only the batches the plan touches, with their
// post-withdrawal quantities.
func consumedBatches(batches []Batch, plan Plan) []Batch {
	used := make(map[string]decimal.Decimal, len(plan.Lines))
	for _, line := range plan.Lines {
		used[line.BatchID] = line.Used
	}
	var out []Batch
	for _, b := range batches {
		if u, ok := used[b.ID]; ok {
			b.Quantity = b.Quantity.Sub(u)
			out = append(out, b)
		}
	}
	return out
}

// Withdrawals lists the withdrawal history for one item, newest first.
func (s *Service) Withdrawals(ctx context.Context, name string, page, perPage int) ([]WithdrawalRecord, shared.Pagination, error) {
	records, total, err := s.repo.ListWithdrawals(ctx, WithdrawalFilter{Name: name, Page: page, PerPage: perPage})
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return records, shared.NewPagination(page, perPage, total), nil
}

// ItemDetail loads one item's batch group and recent withdrawals in parallel.
type ItemDetail struct {
	Group       GroupedItem        `json:"group"`
	Withdrawals []WithdrawalRecord `json:"withdrawals"`
}

// Detail returns the full history view for one item name.
func (s *Service) Detail(ctx context.Context, name string) (ItemDetail, error) {
	var detail ItemDetail
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		batches, err := s.repo.ListBatches(ctx, BatchFilter{Name: name})
		if err != nil {
			return err
		}
		if len(batches) == 0 {
			return ErrUnknownItem
		}
		detail.Group = Aggregate(batches)[name]
		return nil
	})
	g.Go(func() error {
		records, _, err := s.repo.ListWithdrawals(ctx, WithdrawalFilter{Name: name, Page: 1, PerPage: 50})
		if err != nil {
			return err
		}
		detail.Withdrawals = records
		return nil
	})
	if err := g.Wait(); err != nil {
		return ItemDetail{}, err
	}
	return detail, nil
}
