// Package compliance records regulatory audit events for the intake
// assistant. Events carry field-type names and categories only; patient
// values are never written to the audit log.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of compliance event.
type AuditEventType string

const (
	// EventEmergencyDetected is logged when the crisis lexicon fires.
	EventEmergencyDetected AuditEventType = "intake.emergency_detected"
	// EventModerationFlagged is logged when moderation refuses a message.
	EventModerationFlagged AuditEventType = "intake.moderation_flagged"
	// EventPIIDetected is logged when PII field types are found in a message.
	EventPIIDetected AuditEventType = "intake.pii_detected"
	// EventRequestSubmitted is logged when a patient confirms a draft.
	EventRequestSubmitted AuditEventType = "intake.request_submitted"
)

// AuditEvent is an immutable audit record.
type AuditEvent struct {
	ID        string          `json:"id"`
	EventType AuditEventType  `json:"event_type"`
	SessionID string          `json:"session_id"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditDetails contains event-specific details.
type AuditDetails struct {
	Categories []string `json:"categories,omitempty"`
	FieldTypes []string `json:"field_types,omitempty"`
	Intent     string   `json:"intent,omitempty"`
}

// AuditService writes audit events to Postgres. A nil receiver or nil DB is a
// no-op, so callers need no guard when auditing is not configured.
type AuditService struct {
	db *sql.DB
}

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	if db == nil {
		return nil
	}
	return &AuditService{db: db}
}

// LogEvent records one audit event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if s == nil || s.db == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO intake_audit_events (
			id, event_type, session_id, details, created_at
		) VALUES ($1, $2, $3, $4, $5)
	`, event.ID, event.EventType, event.SessionID, event.Details, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}
	return nil
}

// LogEmergencyDetected records an emergency lexicon match.
func (s *AuditService) LogEmergencyDetected(ctx context.Context, sessionID string) error {
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventEmergencyDetected,
		SessionID: sessionID,
	})
}

// LogModerationFlagged records a moderation refusal with its categories.
func (s *AuditService) LogModerationFlagged(ctx context.Context, sessionID string, categories []string) error {
	details, _ := json.Marshal(AuditDetails{Categories: categories})
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventModerationFlagged,
		SessionID: sessionID,
		Details:   details,
	})
}

// LogPIIDetected records which PII field types were found, never the values.
func (s *AuditService) LogPIIDetected(ctx context.Context, sessionID string, fieldTypes []string) error {
	details, _ := json.Marshal(AuditDetails{FieldTypes: fieldTypes})
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventPIIDetected,
		SessionID: sessionID,
		Details:   details,
	})
}

// LogRequestSubmitted records a confirmed intake request.
func (s *AuditService) LogRequestSubmitted(ctx context.Context, sessionID, intent string) error {
	details, _ := json.Marshal(AuditDetails{Intent: intent})
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventRequestSubmitted,
		SessionID: sessionID,
		Details:   details,
	})
}

// QueryEvents retrieves audit events for a session, newest first.
func (s *AuditService) QueryEvents(ctx context.Context, sessionID string, limit int) ([]AuditEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	query := `
		SELECT id, event_type, session_id, details, created_at
		FROM intake_audit_events
		WHERE session_id = $1
		ORDER BY created_at DESC
	`
	args := []any{sessionID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.SessionID, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
