package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AuditEntry is one recorded action against an entity.
type AuditEntry struct {
	ID         int             `json:"id"`
	UserID     *int            `json:"user_id,omitempty"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   int             `json:"entity_id"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AuditService records who did what. Recording is best-effort: a failed audit
// write is logged but never fails the operation it describes.
type AuditService interface {
	Record(ctx context.Context, userID *int, action, entityType string, entityID int, details any)
	ListForEntity(ctx context.Context, entityType string, entityID int) ([]AuditEntry, error)
}

type auditService struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewAuditService(pool *pgxpool.Pool) AuditService {
	return &auditService{pool: pool, log: log.With().Str("component", "audit").Logger()}
}

func (s *auditService) Record(ctx context.Context, userID *int, action, entityType string, entityID int, details any) {
	var payload []byte
	if details != nil {
		var err error
		if payload, err = json.Marshal(details); err != nil {
			s.log.Warn().Err(err).Str("action", action).Msg("failed to marshal audit details")
			payload = nil
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (user_id, action, entity_type, entity_id, details)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, action, entityType, entityID, payload)
	if err != nil {
		s.log.Warn().Err(err).
			Str("action", action).
			Str("entity_type", entityType).
			Int("entity_id", entityID).
			Msg("failed to write audit entry")
	}
}

func (s *auditService) ListForEntity(ctx context.Context, entityType string, entityID int) ([]AuditEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, action, entity_type, entity_id, details, created_at
		FROM audit_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
	`, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
