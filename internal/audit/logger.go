package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dangerclosesec/orgmgr/internal/model"
	chimw "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

// Event is one auditable lifecycle or login action.
type Event struct {
	Action           string
	Result           bool
	OrganizationName string
	AdminID          string
	Detail           string
}

// Logger defines the interface for auditing operations
type Logger interface {
	// LogEvent records an event. Request metadata is taken from ctx.
	LogEvent(ctx context.Context, event Event) error
}

// NoOpLogger is a logger that does nothing
type NoOpLogger struct{}

// LogEvent implements Logger.LogEvent
func (l *NoOpLogger) LogEvent(ctx context.Context, event Event) error {
	return nil
}

// DBLogger persists events to the audit_events table.
type DBLogger struct {
	db *gorm.DB
}

func NewDBLogger(db *gorm.DB) *DBLogger {
	return &DBLogger{db: db}
}

// LogEvent implements Logger.LogEvent
func (l *DBLogger) LogEvent(ctx context.Context, event Event) error {
	entry := &model.AuditEvent{
		Action:           event.Action,
		Result:           event.Result,
		OrganizationName: event.OrganizationName,
		AdminID:          event.AdminID,
		Detail:           event.Detail,
		RequestID:        chimw.GetReqID(ctx),
		ClientIP:         ClientIP(ctx),
	}

	if err := l.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create audit event: %w", err)
	}
	return nil
}

// Record logs event and only reports a failure to slog; auditing never fails
// the operation being audited.
func Record(ctx context.Context, logger Logger, event Event) {
	if logger == nil {
		return
	}
	if err := logger.LogEvent(ctx, event); err != nil {
		slog.WarnContext(ctx, "audit event not recorded", "action", event.Action, "error", err)
	}
}

type contextKey string

const clientIPKey = contextKey("audit_client_ip")

// WithClientIP stores the caller address for later audit entries.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the address stored by WithClientIP, if any.
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
