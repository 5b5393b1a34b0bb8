package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"payrecon-backend/internal/domains/payment/model"
)

// =====================================================
// OPS ESCALATION SINK IMPLEMENTATION
// =====================================================
// Postgres-backed sink. Escalations are work items for the operations
// team, not log lines; they must survive restarts and be listable.
type escalationRepository struct {
	pool *pgxpool.Pool
}

func NewEscalationRepository(pool *pgxpool.Pool) EscalationSinkInterface {
	return &escalationRepository{pool: pool}
}

// Create emits one escalation work item
func (r *escalationRepository) Create(
	ctx context.Context,
	escalation *model.OpsEscalation,
) error {
	query := `
		INSERT INTO ops_escalations (
			id, type, resource_id, resource_type, metadata, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	metadataJSON, err := json.Marshal(escalation.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = r.pool.Exec(ctx, query,
		escalation.ID,
		escalation.Type,
		escalation.ResourceID,
		escalation.ResourceType,
		metadataJSON,
		escalation.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create escalation: %w", err)
	}

	return nil
}

// List lists recent escalations, newest first
func (r *escalationRepository) List(
	ctx context.Context,
	limit int,
) ([]*model.OpsEscalation, error) {
	query := `
		SELECT id, type, resource_id, resource_type, metadata, created_at
		FROM ops_escalations
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}
	defer rows.Close()

	var escalations []*model.OpsEscalation
	for rows.Next() {
		escalation := &model.OpsEscalation{}
		var metadataJSON []byte

		err := rows.Scan(
			&escalation.ID,
			&escalation.Type,
			&escalation.ResourceID,
			&escalation.ResourceType,
			&metadataJSON,
			&escalation.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}

		if metadataJSON != nil {
			json.Unmarshal(metadataJSON, &escalation.Metadata)
		}

		escalations = append(escalations, escalation)
	}

	return escalations, nil
}
