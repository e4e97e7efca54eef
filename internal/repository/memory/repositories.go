package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/commission-service/internal/domain"
	"github.com/spec-kit/commission-service/internal/repository"
)

type userRepo struct{ base }

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	return r.with(ctx, func(st *state, now time.Time) error {
		for _, existing := range st.users {
			if strings.EqualFold(existing.Email, user.Email) {
				return repository.ErrDuplicate
			}
		}
		user.ID = newID()
		user.CreatedAt, user.UpdatedAt = now, now
		st.users[user.ID] = *user
		return nil
	})
}

func (r *userRepo) Update(ctx context.Context, user *domain.User) error {
	return r.with(ctx, func(st *state, now time.Time) error {
		existing, ok := st.users[user.ID]
		if !ok {
			return repository.ErrNotFound
		}
		for id, other := range st.users {
			if id != user.ID && strings.EqualFold(other.Email, user.Email) {
				return repository.ErrDuplicate
			}
		}
		user.CreatedAt = existing.CreatedAt
		user.UpdatedAt = now
		st.users[user.ID] = *user
		return nil
	})
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var out domain.User
	err := r.with(ctx, func(st *state, _ time.Time) error {
		user, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var out domain.User
	err := r.with(ctx, func(st *state, _ time.Time) error {
		for _, user := range st.users {
			if user.Email == email {
				out = user
				return nil
			}
		}
		return repository.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *userRepo) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	count := 0
	err := r.with(ctx, func(st *state, _ time.Time) error {
		for _, user := range st.users {
			if user.Role == role {
				count++
			}
		}
		return nil
	})
	return count, err
}

type agentRepo struct{ base }

func (r *agentRepo) Create(ctx context.Context, agent *domain.Agent) error {
	return r.with(ctx, func(st *state, now time.Time) error {
		for _, existing := range st.agents {
			if existing.Code == agent.Code {
				return repository.ErrDuplicate
			}
		}
		agent.ID = newID()
		agent.CreatedAt, agent.UpdatedAt = now, now
		agent.Counters = zeroCounters()
		st.agents[agent.ID] = *agent
		return nil
	})
}

func (r *agentRepo) Update(ctx context.Context, agent *domain.Agent) error {
	return r.with(ctx, func(st *state, now time.Time) error {
		existing, ok := st.agents[agent.ID]
		if !ok {
			return repository.ErrNotFound
		}
		existing.Name = agent.Name
		existing.Email = agent.Email
		existing.Phone = agent.Phone
		existing.Active = agent.Active
		existing.UpdatedAt = now
		st.agents[agent.ID] = existing
		*agent = existing
		return nil
	})
}

func (r *agentRepo) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	var out domain.Agent
	err := r.with(ctx, func(st *state, _ time.Time) error {
		agent, ok := st.agents[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = agent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *agentRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Agent, error) {
	return r.GetByID(ctx, id)
}

func (r *agentRepo) List(ctx context.Context, filter repository.RosterFilter) ([]domain.Agent, error) {
	var out []domain.Agent
	err := r.with(ctx, func(st *state, _ time.Time) error {
		for _, agent := range st.agents {
			if filter.ActiveOnly && !agent.Active {
				continue
			}
			if !matchesSearch(filter.Search, agent.Name, agent.Code, agent.Email) {
				continue
			}
			out = append(out, agent)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *agentRepo) UpdateRates(ctx context.Context, id string, agentRate, closerRate decimal.Decimal) error {
	return r.with(ctx, func(st *state, now time.Time) error {
		agent, ok := st.agents[id]
		if !ok {
			return repository.ErrNotFound
		}
		agent.CommissionRate = agentRate
		agent.CloserCommissionRate = closerRate
		agent.UpdatedAt = now
		st.agents[id] = agent
		return nil
	})
}

func (r *agentRepo) AdjustCounters(ctx context.Context, id string, delta domain.CounterDelta) error {
	return r.with(ctx, func(st *state, now time.Time) error {
		agent, ok := st.agents[id]
		if !ok {
			return repository.ErrNotFound
		}
		agent.Counters = agent.Counters.Apply(delta)
		agent.UpdatedAt = now
		st.agents[id] = agent
		return nil
	})
}

type closerRepo struct{ base }

func (r *closerRepo) Create(ctx context.Context, closer *domain.Closer) error {
	return r.with(ctx, func(st *state, now time.Time) error {
		for _, existing := range st.closers {
			if existing.Code == closer.Code {
				return repository.ErrDuplicate
			}
		}
		closer.ID = newID()
		closer.CreatedAt, closer.UpdatedAt = now, now
		closer.Counters = zeroCounters()
		st.closers[closer.ID] = *closer
		return nil
	})
}

func (r *closerRepo) Update(ctx context.Context, closer *domain.Closer) error {
	return r.with(ctx, func(st *state, now time.Time) error {
		existing, ok := st.closers[closer.ID]
		if !ok {
			return repository.ErrNotFound
		}
		existing.Name = closer.Name
		existing.Email = closer.Email
		existing.Phone = closer.Phone
		existing.CommissionRate = closer.CommissionRate
		existing.Status = closer.Status
		existing.Notes = closer.Notes
		existing.UpdatedAt = now
		st.closers[closer.ID] = existing
		*closer = existing
		return nil
	})
}

func (r *closerRepo) GetByID(ctx context.Context, id string) (*domain.Closer, error) {
	var out domain.Closer
	err := r.with(ctx, func(st *state, _ time.Time) error {
		closer, ok := st.closers[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = closer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *closerRepo) List(ctx context.Context, filter repository.RosterFilter) ([]domain.Closer, error) {
	var out []domain.Closer
	err := r.with(ctx, func(st *state, _ time.Time) error {
		for _, closer := range st.closers {
			if filter.ActiveOnly && !closer.IsActive() {
				continue
			}
			if !matchesSearch(filter.Search, closer.Name, closer.Code, closer.Email) {
				continue
			}
			out = append(out, closer)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *closerRepo) AdjustCounters(ctx context.Context, id string, delta domain.CounterDelta) error {
	return r.with(ctx, func(st *state, now time.Time) error {
		closer, ok := st.closers[id]
		if !ok {
			return repository.ErrNotFound
		}
		closer.Counters = closer.Counters.Apply(delta)
		closer.UpdatedAt = now
		st.closers[id] = closer
		return nil
	})
}

type saleRepo struct{ base }

func (r *saleRepo) Create(ctx context.Context, sale *domain.Sale) error {
	return r.with(ctx, func(st *state, now time.Time) error {
		for _, existing := range st.sales {
			if existing.ReferenceCode == sale.ReferenceCode {
				return repository.ErrDuplicate
			}
			if sale.OriginalSaleID != nil && existing.OriginalSaleID != nil &&
				*existing.OriginalSaleID == *sale.OriginalSaleID && activeResubmission(existing.Status) {
				return repository.ErrDuplicate
			}
		}
		sale.ID = newID()
		if sale.CreatedAt.IsZero() {
			sale.CreatedAt = now
		}
		sale.UpdatedAt = now
		st.sales[sale.ID] = *sale
		return nil
	})
}

func (r *saleRepo) Update(ctx context.Context, sale *domain.Sale) error {
	return r.with(ctx, func(st *state, now time.Time) error {
		existing, ok := st.sales[sale.ID]
		if !ok {
			return repository.ErrNotFound
		}
		existing.AgentCommissionRate = sale.AgentCommissionRate
		existing.AgentCommission = sale.AgentCommission
		existing.CloserCommissionRate = sale.CloserCommissionRate
		existing.CloserCommission = sale.CloserCommission
		existing.Status = sale.Status
		existing.CommissionStatus = sale.CommissionStatus
		existing.UpdatedAt = now
		st.sales[sale.ID] = existing
		sale.UpdatedAt = now
		return nil
	})
}

func (r *saleRepo) GetByID(ctx context.Context, id string) (*domain.Sale, error) {
	var out domain.Sale
	err := r.with(ctx, func(st *state, _ time.Time) error {
		sale, ok := st.sales[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = sale
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *saleRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Sale, error) {
	return r.GetByID(ctx, id)
}

func (r *saleRepo) ReferenceExists(ctx context.Context, code string) (bool, error) {
	exists := false
	err := r.with(ctx, func(st *state, _ time.Time) error {
		for _, sale := range st.sales {
			if sale.ReferenceCode == code {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func (r *saleRepo) HasActiveResubmission(ctx context.Context, originalID string) (bool, error) {
	exists := false
	err := r.with(ctx, func(st *state, _ time.Time) error {
		for _, sale := range st.sales {
			if sale.OriginalSaleID != nil && *sale.OriginalSaleID == originalID && activeResubmission(sale.Status) {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func (r *saleRepo) ListRecalculableForUpdate(ctx context.Context, agentID string) ([]*domain.Sale, error) {
	sales, err := r.ListAll(ctx, domain.SaleFilter{AgentID: &agentID})
	if err != nil {
		return nil, err
	}
	out := sales[:0]
	for _, sale := range sales {
		if sale.Recalculable() {
			out = append(out, sale)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *saleRepo) List(ctx context.Context, filter domain.SaleFilter) ([]*domain.Sale, error) {
	sales, err := r.ListAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	return paginate(sales, filter.Limit, filter.Offset), nil
}

func (r *saleRepo) ListAll(ctx context.Context, filter domain.SaleFilter) ([]*domain.Sale, error) {
	var out []*domain.Sale
	err := r.with(ctx, func(st *state, _ time.Time) error {
		for _, sale := range st.sales {
			sale := sale
			if filter.Matches(&sale) {
				out = append(out, &sale)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

type historyRepo struct{ base }

func (r *historyRepo) Append(ctx context.Context, entry *domain.SaleHistory) error {
	return r.with(ctx, func(st *state, now time.Time) error {
		if _, ok := st.sales[entry.SaleID]; !ok {
			return repository.ErrNotFound
		}
		entry.ID = newID()
		entry.CreatedAt = now
		st.history = append(st.history, *entry)
		return nil
	})
}

func (r *historyRepo) ListBySale(ctx context.Context, saleID string) ([]domain.SaleHistory, error) {
	var out []domain.SaleHistory
	err := r.with(ctx, func(st *state, _ time.Time) error {
		for _, entry := range st.history {
			if entry.SaleID == saleID {
				out = append(out, entry)
			}
		}
		return nil
	})
	return out, err
}

type paymentRepo struct{ base }

func (r *paymentRepo) Create(ctx context.Context, payment *domain.Payment) error {
	return r.with(ctx, func(st *state, now time.Time) error {
		for _, existing := range st.payments {
			if existing.Reference == payment.Reference {
				return repository.ErrDuplicate
			}
		}
		payment.ID = newID()
		payment.CreatedAt, payment.UpdatedAt = now, now
		st.payments[payment.ID] = *payment
		return nil
	})
}

func (r *paymentRepo) Update(ctx context.Context, payment *domain.Payment) error {
	return r.with(ctx, func(st *state, now time.Time) error {
		existing, ok := st.payments[payment.ID]
		if !ok {
			return repository.ErrNotFound
		}
		existing.Status = payment.Status
		existing.RefundedAmount = payment.RefundedAmount
		existing.FailureMessage = payment.FailureMessage
		existing.UpdatedAt = now
		st.payments[payment.ID] = existing
		payment.UpdatedAt = now
		return nil
	})
}

func (r *paymentRepo) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	var out domain.Payment
	err := r.with(ctx, func(st *state, _ time.Time) error {
		payment, ok := st.payments[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *paymentRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Payment, error) {
	return r.GetByID(ctx, id)
}

func (r *paymentRepo) List(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, error) {
	var out []*domain.Payment
	err := r.with(ctx, func(st *state, _ time.Time) error {
		for _, payment := range st.payments {
			payment := payment
			if filter.SaleID != nil && (payment.SaleID == nil || *payment.SaleID != *filter.SaleID) {
				continue
			}
			if filter.Status != nil && payment.Status != *filter.Status {
				continue
			}
			out = append(out, &payment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter.Limit, filter.Offset), nil
}

type resetRepo struct{ base }

func (r *resetRepo) Create(ctx context.Context, token *domain.PasswordResetToken) error {
	return r.with(ctx, func(st *state, now time.Time) error {
		token.ID = newID()
		token.CreatedAt = now
		st.resets[token.Token] = *token
		return nil
	})
}

func (r *resetRepo) GetByToken(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	var out domain.PasswordResetToken
	err := r.with(ctx, func(st *state, _ time.Time) error {
		stored, ok := st.resets[token]
		if !ok {
			return repository.ErrNotFound
		}
		out = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *resetRepo) MarkUsed(ctx context.Context, id string) error {
	return r.with(ctx, func(st *state, now time.Time) error {
		for key, stored := range st.resets {
			if stored.ID == id && stored.UsedAt == nil {
				used := now
				stored.UsedAt = &used
				st.resets[key] = stored
				return nil
			}
		}
		return repository.ErrNotFound
	})
}

func activeResubmission(status domain.SaleStatus) bool {
	return status == domain.SaleStatusResubmitted || status == domain.SaleStatusApproved
}

func zeroCounters() domain.Counters {
	return domain.Counters{
		TotalSalesValue:   decimal.Zero,
		TotalEarnings:     decimal.Zero,
		PendingCommission: decimal.Zero,
	}
}

func matchesSearch(term string, fields ...string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, limit, offset int) []T {
	limit, offset = repository.PageBounds(limit, offset)
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
