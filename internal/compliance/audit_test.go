package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockService(t *testing.T) (*AuditService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewAuditService(db), mock
}

func TestLogEmergencyDetected(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectExec("INSERT INTO intake_audit_events").
		WithArgs(sqlmock.AnyArg(), string(EventEmergencyDetected), "sess-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.LogEmergencyDetected(context.Background(), "sess-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogModerationFlagged(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectExec("INSERT INTO intake_audit_events").
		WithArgs(sqlmock.AnyArg(), string(EventModerationFlagged), "sess-1",
			[]byte(`{"categories":["violence"]}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.LogModerationFlagged(context.Background(), "sess-1", []string{"violence"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogPIIDetectedCarriesTypesOnly(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectExec("INSERT INTO intake_audit_events").
		WithArgs(sqlmock.AnyArg(), string(EventPIIDetected), "sess-1",
			[]byte(`{"field_types":["phone","email"]}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.LogPIIDetected(context.Background(), "sess-1", []string{"phone", "email"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRequestSubmitted(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectExec("INSERT INTO intake_audit_events").
		WithArgs(sqlmock.AnyArg(), string(EventRequestSubmitted), "sess-1",
			[]byte(`{"intent":"book"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.LogRequestSubmitted(context.Background(), "sess-1", "book"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilServiceIsNoOp(t *testing.T) {
	var svc *AuditService

	assert.NoError(t, svc.LogEmergencyDetected(context.Background(), "sess-1"))
	assert.NoError(t, svc.LogEvent(context.Background(), AuditEvent{}))

	events, err := svc.QueryEvents(context.Background(), "sess-1", 10)
	assert.NoError(t, err)
	assert.Nil(t, events)
}

func TestQueryEvents(t *testing.T) {
	svc, mock := newMockService(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "event_type", "session_id", "details", "created_at"}).
		AddRow("e2", string(EventRequestSubmitted), "sess-1", []byte(`{"intent":"book"}`), now).
		AddRow("e1", string(EventPIIDetected), "sess-1", []byte(`{"field_types":["phone"]}`), now.Add(-time.Minute))

	mock.ExpectQuery("SELECT id, event_type, session_id, details, created_at").
		WithArgs("sess-1", 10).
		WillReturnRows(rows)

	events, err := svc.QueryEvents(context.Background(), "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventRequestSubmitted, events[0].EventType)
	assert.Equal(t, "sess-1", events[0].SessionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
