package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"payrecon-backend/internal/domains/payment/model"
)

// =====================================================
// AUDIT TRAIL REPOSITORY IMPLEMENTATION
// =====================================================
// Append-only. The table has no UPDATE or DELETE path in code, and
// the migration installs a trigger that rejects both statements.
type auditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) AuditRepoInterface {
	return &auditRepository{pool: pool}
}

// AppendWithTx appends one state change record inside the caller's
// transaction. The record and the payment row update it describes
// commit or roll back together.
func (r *auditRepository) AppendWithTx(
	ctx context.Context,
	tx pgx.Tx,
	record *model.StateChangeRecord,
) error {
	query := `
		INSERT INTO payment_state_changes (
			id, payment_id, old_state, new_state, actor, metadata, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	metadataJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = tx.Exec(ctx, query,
		record.ID,
		record.PaymentID,
		record.OldState,
		record.NewState,
		record.Actor,
		metadataJSON,
		record.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to append state change record: %w", err)
	}

	return nil
}

// ListByPaymentID lists state changes for a payment in the order they
// happened
func (r *auditRepository) ListByPaymentID(
	ctx context.Context,
	paymentID uuid.UUID,
) ([]*model.StateChangeRecord, error) {
	query := `
		SELECT id, payment_id, old_state, new_state, actor, metadata, created_at
		FROM payment_state_changes
		WHERE payment_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list state changes: %w", err)
	}
	defer rows.Close()

	var records []*model.StateChangeRecord
	for rows.Next() {
		record := &model.StateChangeRecord{}
		var metadataJSON []byte

		err := rows.Scan(
			&record.ID,
			&record.PaymentID,
			&record.OldState,
			&record.NewState,
			&record.Actor,
			&metadataJSON,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan state change record: %w", err)
		}

		if metadataJSON != nil {
			json.Unmarshal(metadataJSON, &record.Metadata)
		}

		records = append(records, record)
	}

	return records, nil
}
