package repository

import (
	"context"

	"github.com/spec-kit/commission-service/internal/domain"
)

// SaleHistoryRepository stores the append-only audit trail of sales.
type SaleHistoryRepository interface {
	Append(ctx context.Context, entry *domain.SaleHistory) error
	ListBySale(ctx context.Context, saleID string) ([]domain.SaleHistory, error)
}

type saleHistoryRepository struct {
	db DBTX
}

// NewSaleHistoryRepository constructs repository.
func NewSaleHistoryRepository(db DBTX) SaleHistoryRepository {
	return &saleHistoryRepository{db: db}
}

func (r *saleHistoryRepository) Append(ctx context.Context, entry *domain.SaleHistory) error {
	const query = `
        INSERT INTO sale_history (sale_id, actor_id, actor_role, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query,
		entry.SaleID,
		entry.ActorID,
		entry.ActorRole,
		entry.ChangeType,
		entry.OldValue,
		entry.NewValue,
	).Scan(&entry.ID, &entry.CreatedAt)
	return translate(err)
}

func (r *saleHistoryRepository) ListBySale(ctx context.Context, saleID string) ([]domain.SaleHistory, error) {
	const query = `
        SELECT id, sale_id, actor_id, actor_role, change_type, old_value, new_value, created_at
        FROM sale_history WHERE sale_id=$1
        ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, saleID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.SaleHistory
	for rows.Next() {
		var entry domain.SaleHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.SaleID,
			&entry.ActorID,
			&entry.ActorRole,
			&entry.ChangeType,
			&entry.OldValue,
			&entry.NewValue,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, translate(rows.Err())
}
