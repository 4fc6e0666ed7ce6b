package audit

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"icredit2.org/internal/identity"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// SetLogger installs the logger audit events are written to.
func SetLogger(l *zap.Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	logger = l
	mu.Unlock()
}

// WithRequestID attaches the request identifier to the context for audit
// logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit entry enriched with request and user context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}

	zfields := make([]zap.Field, 0, len(fields)+3)
	zfields = append(zfields, zap.String("event", event))
	if rid := requestIDFromContext(ctx); rid != "" {
		zfields = append(zfields, zap.String("request_id", rid))
	}
	if principal, ok := identity.PrincipalFromContext(ctx); ok && principal.User != nil {
		zfields = append(zfields, zap.String("user_id", principal.User.ID))
	}
	for k, v := range fields {
		zfields = append(zfields, zap.Any(k, v))
	}

	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Info("audit", zfields...)
	return nil
}
