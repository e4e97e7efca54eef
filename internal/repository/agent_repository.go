package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/commission-service/internal/domain"
)

// RosterFilter narrows agent and closer listings.
type RosterFilter struct {
	ActiveOnly bool
	Search     string
	Limit      int
	Offset     int
}

// AgentRepository encapsulates agent persistence including the counter
// projection.
type AgentRepository interface {
	Create(ctx context.Context, agent *domain.Agent) error
	Update(ctx context.Context, agent *domain.Agent) error
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Agent, error)
	List(ctx context.Context, filter RosterFilter) ([]domain.Agent, error)
	UpdateRates(ctx context.Context, id string, agentRate, closerRate decimal.Decimal) error
	AdjustCounters(ctx context.Context, id string, delta domain.CounterDelta) error
}

type agentRepository struct {
	db DBTX
}

// NewAgentRepository instantiates repository.
func NewAgentRepository(db DBTX) AgentRepository {
	return &agentRepository{db: db}
}

const agentColumns = `id, code, name, email, phone, commission_rate, closer_commission_rate, active,
               total_sales, total_sales_value, total_earnings, pending_commission, created_at, updated_at`

func (r *agentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	const query = `
        INSERT INTO agents (code, name, email, phone, commission_rate, closer_commission_rate, active)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		agent.Code,
		agent.Name,
		agent.Email,
		agent.Phone,
		agent.CommissionRate,
		agent.CloserCommissionRate,
		agent.Active,
	).Scan(&agent.ID, &agent.CreatedAt, &agent.UpdatedAt)
	return translate(err)
}

// Update writes profile fields only. Rates and counters have dedicated
// statements.
func (r *agentRepository) Update(ctx context.Context, agent *domain.Agent) error {
	const query = `
        UPDATE agents SET name=$1, email=$2, phone=$3, active=$4, updated_at=NOW()
        WHERE id=$5`
	return expectOne(r.db.Exec(ctx, query,
		agent.Name,
		agent.Email,
		agent.Phone,
		agent.Active,
		agent.ID,
	))
}

func (r *agentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	return r.fetchSingle(ctx, `SELECT `+agentColumns+` FROM agents WHERE id=$1`, id)
}

func (r *agentRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Agent, error) {
	return r.fetchSingle(ctx, `SELECT `+agentColumns+` FROM agents WHERE id=$1 FOR UPDATE`, id)
}

func (r *agentRepository) List(ctx context.Context, filter RosterFilter) ([]domain.Agent, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.ActiveOnly {
		clauses = append(clauses, "active = TRUE")
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		args = append(args, "%"+strings.ToLower(term)+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(name) LIKE %s OR LOWER(code) LIKE %s OR LOWER(email) LIKE %s)", placeholder, placeholder, placeholder))
	}
	limit, offset := PageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM agents WHERE %s ORDER BY name ASC LIMIT %d OFFSET %d`,
		agentColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *agent)
	}
	return result, translate(rows.Err())
}

func (r *agentRepository) UpdateRates(ctx context.Context, id string, agentRate, closerRate decimal.Decimal) error {
	const query = `
        UPDATE agents SET commission_rate=$1, closer_commission_rate=$2, updated_at=NOW()
        WHERE id=$3`
	return expectOne(r.db.Exec(ctx, query, agentRate, closerRate, id))
}

func (r *agentRepository) AdjustCounters(ctx context.Context, id string, delta domain.CounterDelta) error {
	const query = `
        UPDATE agents SET
            total_sales = total_sales + $1,
            total_sales_value = total_sales_value + $2,
            total_earnings = total_earnings + $3,
            pending_commission = pending_commission + $4,
            updated_at = NOW()
        WHERE id=$5`
	return expectOne(r.db.Exec(ctx, query,
		delta.Sales,
		delta.SalesValue,
		delta.Earnings,
		delta.PendingCommission,
		id,
	))
}

func (r *agentRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Agent, error) {
	agent, err := scanAgent(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, translate(err)
	}
	return agent, nil
}

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var agent domain.Agent
	if err := row.Scan(
		&agent.ID,
		&agent.Code,
		&agent.Name,
		&agent.Email,
		&agent.Phone,
		&agent.CommissionRate,
		&agent.CloserCommissionRate,
		&agent.Active,
		&agent.TotalSales,
		&agent.TotalSalesValue,
		&agent.TotalEarnings,
		&agent.PendingCommission,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &agent, nil
}
