package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/commission-service/internal/domain"
)

// SaleRepository encapsulates sale ledger persistence.
type SaleRepository interface {
	Create(ctx context.Context, sale *domain.Sale) error
	Update(ctx context.Context, sale *domain.Sale) error
	GetByID(ctx context.Context, id string) (*domain.Sale, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Sale, error)
	ReferenceExists(ctx context.Context, code string) (bool, error)
	HasActiveResubmission(ctx context.Context, originalID string) (bool, error)
	ListRecalculableForUpdate(ctx context.Context, agentID string) ([]*domain.Sale, error)
	// List applies the filter including pagination.
	List(ctx context.Context, filter domain.SaleFilter) ([]*domain.Sale, error)
	// ListAll applies the filter and ignores pagination.
	ListAll(ctx context.Context, filter domain.SaleFilter) ([]*domain.Sale, error)
}

type saleRepository struct {
	db DBTX
}

// NewSaleRepository instantiates repository.
func NewSaleRepository(db DBTX) SaleRepository {
	return &saleRepository{db: db}
}

const saleColumns = `id, reference_code, agent_id, closer_id, closer_name, client_name, client_email, client_phone,
               service_name, service_description, amount, sale_date, payment_date,
               agent_commission_rate, agent_commission, closer_commission_rate, closer_commission,
               sale_status, commission_status, notes, original_sale_id, created_at, updated_at`

func (r *saleRepository) Create(ctx context.Context, sale *domain.Sale) error {
	const query = `
        INSERT INTO sales (reference_code, agent_id, closer_id, closer_name, client_name, client_email, client_phone,
            service_name, service_description, amount, sale_date, payment_date,
            agent_commission_rate, agent_commission, closer_commission_rate, closer_commission,
            sale_status, commission_status, notes, original_sale_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
        RETURNING id, created_at, updated_at`
	closerID, closerName := closerColumnsOf(sale.Closer)
	err := r.db.QueryRow(ctx, query,
		sale.ReferenceCode,
		sale.AgentID,
		closerID,
		closerName,
		sale.ClientName,
		sale.ClientEmail,
		sale.ClientPhone,
		sale.ServiceName,
		sale.ServiceDescription,
		sale.Amount,
		sale.SaleDate,
		sale.PaymentDate,
		sale.AgentCommissionRate,
		sale.AgentCommission,
		sale.CloserCommissionRate,
		sale.CloserCommission,
		sale.Status,
		sale.CommissionStatus,
		sale.Notes,
		sale.OriginalSaleID,
	).Scan(&sale.ID, &sale.CreatedAt, &sale.UpdatedAt)
	return translate(err)
}

// Update persists the mutable lifecycle fields. Client and amount fields are
// immutable once submitted.
func (r *saleRepository) Update(ctx context.Context, sale *domain.Sale) error {
	const query = `
        UPDATE sales SET agent_commission_rate=$1, agent_commission=$2, closer_commission_rate=$3, closer_commission=$4,
            sale_status=$5, commission_status=$6, updated_at=NOW()
        WHERE id=$7
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		sale.AgentCommissionRate,
		sale.AgentCommission,
		sale.CloserCommissionRate,
		sale.CloserCommission,
		sale.Status,
		sale.CommissionStatus,
		sale.ID,
	).Scan(&sale.UpdatedAt)
	return translate(err)
}

func (r *saleRepository) GetByID(ctx context.Context, id string) (*domain.Sale, error) {
	return r.fetchSingle(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1`, id)
}

func (r *saleRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Sale, error) {
	return r.fetchSingle(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1 FOR UPDATE`, id)
}

func (r *saleRepository) ReferenceExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sales WHERE reference_code=$1)`, code).Scan(&exists)
	return exists, translate(err)
}

func (r *saleRepository) HasActiveResubmission(ctx context.Context, originalID string) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM sales
            WHERE original_sale_id=$1 AND sale_status IN ($2, $3)
        )`
	var exists bool
	err := r.db.QueryRow(ctx, query, originalID, domain.SaleStatusResubmitted, domain.SaleStatusApproved).Scan(&exists)
	return exists, translate(err)
}

func (r *saleRepository) ListRecalculableForUpdate(ctx context.Context, agentID string) ([]*domain.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales
        WHERE agent_id=$1 AND commission_status=$2 AND sale_status IN ($3, $4)
        ORDER BY created_at ASC
        FOR UPDATE`
	rows, err := r.db.Query(ctx, query, agentID, domain.CommissionStatusPending, domain.SaleStatusPending, domain.SaleStatusResubmitted)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	return scanSales(rows)
}

func (r *saleRepository) List(ctx context.Context, filter domain.SaleFilter) ([]*domain.Sale, error) {
	return r.list(ctx, filter, true)
}

func (r *saleRepository) ListAll(ctx context.Context, filter domain.SaleFilter) ([]*domain.Sale, error) {
	return r.list(ctx, filter, false)
}

func (r *saleRepository) list(ctx context.Context, filter domain.SaleFilter, paginate bool) ([]*domain.Sale, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.AgentID != nil {
		args = append(args, *filter.AgentID)
		clauses = append(clauses, fmt.Sprintf("agent_id=$%d", len(args)))
	}
	if filter.CloserID != nil {
		args = append(args, *filter.CloserID)
		clauses = append(clauses, fmt.Sprintf("closer_id=$%d", len(args)))
	}
	if filter.SaleStatus != nil {
		args = append(args, *filter.SaleStatus)
		clauses = append(clauses, fmt.Sprintf("sale_status=$%d", len(args)))
	}
	if filter.CommissionStatus != nil {
		args = append(args, *filter.CommissionStatus)
		clauses = append(clauses, fmt.Sprintf("commission_status=$%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("COALESCE(sale_date, created_at) >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("COALESCE(sale_date, created_at) < $%d", len(args)))
	}
	if filter.MinAmount != nil {
		args = append(args, *filter.MinAmount)
		clauses = append(clauses, fmt.Sprintf("amount >= $%d", len(args)))
	}
	if filter.MaxAmount != nil {
		args = append(args, *filter.MaxAmount)
		clauses = append(clauses, fmt.Sprintf("amount <= $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM sales WHERE %s ORDER BY created_at DESC, id DESC`,
		saleColumns, strings.Join(clauses, " AND "))
	if paginate {
		limit, offset := PageBounds(filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	return scanSales(rows)
}

func (r *saleRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Sale, error) {
	sale, err := scanSale(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, translate(err)
	}
	return sale, nil
}

func closerColumnsOf(ref domain.CloserReference) (*string, *string) {
	var id, name *string
	if ref.Kind == domain.CloserKindRegistered {
		v := ref.ID
		id = &v
	}
	if ref.Name != "" {
		v := ref.Name
		name = &v
	}
	return id, name
}

func closerReferenceOf(id, name *string) domain.CloserReference {
	displayName := ""
	if name != nil {
		displayName = *name
	}
	if id != nil {
		ref := domain.RegisteredCloser(*id)
		ref.Name = displayName
		return ref
	}
	return domain.AdhocCloser(displayName)
}

func scanSale(row pgx.Row) (*domain.Sale, error) {
	var (
		sale       domain.Sale
		closerID   *string
		closerName *string
	)
	if err := row.Scan(
		&sale.ID,
		&sale.ReferenceCode,
		&sale.AgentID,
		&closerID,
		&closerName,
		&sale.ClientName,
		&sale.ClientEmail,
		&sale.ClientPhone,
		&sale.ServiceName,
		&sale.ServiceDescription,
		&sale.Amount,
		&sale.SaleDate,
		&sale.PaymentDate,
		&sale.AgentCommissionRate,
		&sale.AgentCommission,
		&sale.CloserCommissionRate,
		&sale.CloserCommission,
		&sale.Status,
		&sale.CommissionStatus,
		&sale.Notes,
		&sale.OriginalSaleID,
		&sale.CreatedAt,
		&sale.UpdatedAt,
	); err != nil {
		return nil, err
	}
	sale.Closer = closerReferenceOf(closerID, closerName)
	return &sale, nil
}

func scanSales(rows pgx.Rows) ([]*domain.Sale, error) {
	var result []*domain.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sale)
	}
	return result, translate(rows.Err())
}
