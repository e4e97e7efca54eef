package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/commission-service/internal/domain"
)

// PaymentRepository stores card payment records.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	Update(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, id string) (*domain.Payment, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Payment, error)
	List(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, error)
}

type paymentRepository struct {
	db DBTX
}

// NewPaymentRepository constructs repository.
func NewPaymentRepository(db DBTX) PaymentRepository {
	return &paymentRepository{db: db}
}

const paymentColumns = `id, reference, sale_id, client_name, client_email, amount, currency, status, transaction_id,
               card_brand, card_last4, refunded_amount, failure_message, created_at, updated_at`

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	const query = `
        INSERT INTO payments (reference, sale_id, client_name, client_email, amount, currency, status, transaction_id,
            card_brand, card_last4, refunded_amount, failure_message)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		payment.Reference,
		payment.SaleID,
		payment.ClientName,
		payment.ClientEmail,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.TransactionID,
		payment.CardBrand,
		payment.CardLast4,
		payment.RefundedAmount,
		payment.FailureMessage,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	return translate(err)
}

func (r *paymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	const query = `
        UPDATE payments SET status=$1, refunded_amount=$2, failure_message=$3, updated_at=NOW()
        WHERE id=$4`
	return expectOne(r.db.Exec(ctx, query,
		payment.Status,
		payment.RefundedAmount,
		payment.FailureMessage,
		payment.ID,
	))
}

func (r *paymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	return r.fetchSingle(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id)
}

func (r *paymentRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Payment, error) {
	return r.fetchSingle(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1 FOR UPDATE`, id)
}

func (r *paymentRepository) List(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.SaleID != nil {
		args = append(args, *filter.SaleID)
		clauses = append(clauses, fmt.Sprintf("sale_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	limit, offset := PageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		paymentColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, payment)
	}
	return result, translate(rows.Err())
}

func (r *paymentRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Payment, error) {
	payment, err := scanPayment(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, translate(err)
	}
	return payment, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var payment domain.Payment
	if err := row.Scan(
		&payment.ID,
		&payment.Reference,
		&payment.SaleID,
		&payment.ClientName,
		&payment.ClientEmail,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.TransactionID,
		&payment.CardBrand,
		&payment.CardLast4,
		&payment.RefundedAmount,
		&payment.FailureMessage,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &payment, nil
}
