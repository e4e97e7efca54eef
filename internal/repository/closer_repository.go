package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/commission-service/internal/domain"
)

// CloserRepository encapsulates closer persistence.
type CloserRepository interface {
	Create(ctx context.Context, closer *domain.Closer) error
	Update(ctx context.Context, closer *domain.Closer) error
	GetByID(ctx context.Context, id string) (*domain.Closer, error)
	List(ctx context.Context, filter RosterFilter) ([]domain.Closer, error)
	AdjustCounters(ctx context.Context, id string, delta domain.CounterDelta) error
}

type closerRepository struct {
	db DBTX
}

// NewCloserRepository instantiates repository.
func NewCloserRepository(db DBTX) CloserRepository {
	return &closerRepository{db: db}
}

const closerColumns = `id, code, name, email, phone, commission_rate, status, notes,
               total_sales, total_sales_value, total_earnings, pending_commission, created_at, updated_at`

func (r *closerRepository) Create(ctx context.Context, closer *domain.Closer) error {
	const query = `
        INSERT INTO closers (code, name, email, phone, commission_rate, status, notes)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		closer.Code,
		closer.Name,
		closer.Email,
		closer.Phone,
		closer.CommissionRate,
		closer.Status,
		closer.Notes,
	).Scan(&closer.ID, &closer.CreatedAt, &closer.UpdatedAt)
	return translate(err)
}

func (r *closerRepository) Update(ctx context.Context, closer *domain.Closer) error {
	const query = `
        UPDATE closers SET name=$1, email=$2, phone=$3, commission_rate=$4, status=$5, notes=$6, updated_at=NOW()
        WHERE id=$7`
	return expectOne(r.db.Exec(ctx, query,
		closer.Name,
		closer.Email,
		closer.Phone,
		closer.CommissionRate,
		closer.Status,
		closer.Notes,
		closer.ID,
	))
}

func (r *closerRepository) GetByID(ctx context.Context, id string) (*domain.Closer, error) {
	closer, err := scanCloser(r.db.QueryRow(ctx, `SELECT `+closerColumns+` FROM closers WHERE id=$1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return closer, nil
}

func (r *closerRepository) List(ctx context.Context, filter RosterFilter) ([]domain.Closer, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.ActiveOnly {
		args = append(args, domain.CloserStatusActive)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		args = append(args, "%"+strings.ToLower(term)+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(name) LIKE %s OR LOWER(code) LIKE %s OR LOWER(email) LIKE %s)", placeholder, placeholder, placeholder))
	}
	limit, offset := PageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM closers WHERE %s ORDER BY name ASC LIMIT %d OFFSET %d`,
		closerColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.Closer
	for rows.Next() {
		closer, err := scanCloser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *closer)
	}
	return result, translate(rows.Err())
}

func (r *closerRepository) AdjustCounters(ctx context.Context, id string, delta domain.CounterDelta) error {
	const query = `
        UPDATE closers SET
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

func scanCloser(row pgx.Row) (*domain.Closer, error) {
	var closer domain.Closer
	if err := row.Scan(
		&closer.ID,
		&closer.Code,
		&closer.Name,
		&closer.Email,
		&closer.Phone,
		&closer.CommissionRate,
		&closer.Status,
		&closer.Notes,
		&closer.TotalSales,
		&closer.TotalSalesValue,
		&closer.TotalEarnings,
		&closer.PendingCommission,
		&closer.CreatedAt,
		&closer.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &closer, nil
}
