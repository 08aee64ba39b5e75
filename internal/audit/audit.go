// Package audit assembles one record per authorized request and dispatches
// it to two sinks: a bounded rolling buffer in redis for fast inspection,
// and the durable relational log. Neither sink may fail the request.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akirafn/commerce-gateway/internal/models"
)

const (
	// RollingBufferSize bounds the per-tenant recent-entries list in redis.
	RollingBufferSize = 1000

	sinkTimeout = 5 * time.Second
)

// ListStore is the rolling-buffer sink.
type ListStore interface {
	PushAndTrim(ctx context.Context, key string, value []byte, maxLen int64) error
}

// DurableLog is the append-only relational sink.
type DurableLog interface {
	InsertAuditLog(ctx context.Context, entry *models.AuditLog) error
}

type Recorder struct {
	store  ListStore
	db     DurableLog
	logger *zap.Logger
}

func NewRecorder(store ListStore, db DurableLog, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, db: db, logger: logger}
}

// ScrubHeaders flattens a header map and removes credential-bearing
// headers. Authorization and Cookie values must never reach storage.
func ScrubHeaders(headers http.Header) map[string]string {
	scrubbed := make(map[string]string, len(headers))
	for name, values := range headers {
		switch strings.ToLower(name) {
		case "authorization", "cookie":
			continue
		}
		scrubbed[name] = strings.Join(values, ", ")
	}
	return scrubbed
}

// BuildEntry assembles the audit record for an in-flight request.
func BuildEntry(r *http.Request, body []byte, tenant *models.Tenant, requestID, clientIP string, now time.Time) *models.AuditLog {
	return &models.AuditLog{
		ID:             uuid.New().String(),
		ClientID:       tenant.ID,
		RequestID:      requestID,
		RequestMethod:  r.Method,
		RequestPath:    r.URL.Path,
		RequestHeaders: ScrubHeaders(r.Header),
		RequestBody:    string(body),
		IPAddress:      clientIP,
		UserAgent:      r.Header.Get("User-Agent"),
		Origin:         r.Header.Get("Origin"),
		AuthMode:       tenant.AuthMode,
		SiteKeyUsed:    tenant.SiteKey,
		APIKeyUsed:     tenant.APIKey,
		Success:        true,
		CreatedAt:      now,
	}
}

// Record dispatches the entry to both sinks independently. Failures are
// logged, never returned: the request has already been authorized and must
// not be penalized for a logging-sink outage.
func (rec *Recorder) Record(entry *models.AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()

	payload, err := json.Marshal(entry)
	if err != nil {
		rec.logger.Error("audit marshal failed", zap.Error(err), zap.String("request_id", entry.RequestID))
	} else {
		key := fmt.Sprintf("audit:%s", entry.ClientID)
		if err := rec.store.PushAndTrim(ctx, key, payload, RollingBufferSize); err != nil {
			rec.logger.Error("audit rolling buffer write failed",
				zap.Error(err), zap.String("request_id", entry.RequestID))
		}
	}

	if err := rec.db.InsertAuditLog(ctx, entry); err != nil {
		rec.logger.Error("audit durable write failed",
			zap.Error(err), zap.String("request_id", entry.RequestID))
	}
}
