package keygate

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/keygate/internal/stores"
)

// systemActor is recorded when no human actor applies.
const systemActor = "system"

// emitAudit appends to the durable log and mirrors to the sink. Failures
// are logged and counted; callers never see them.
func (e *Engine) emitAudit(
	ctx context.Context,
	action AuditAction,
	actor string,
	details string,
	metadataBuilder func() map[string]string,
) {
	if e == nil || !e.config.Audit.Enabled {
		return
	}

	now := e.now().UTC()
	record := stores.AuditRecord{
		ID:        e.newID(),
		Action:    string(action),
		Details:   details,
		Actor:     actor,
		CreatedAt: now.UnixMilli(),
	}
	if err := e.auditLog.Append(context.WithoutCancel(ctx), record); err != nil {
		e.metricInc(MetricAuditAppendFailed)
		e.logger.Error(ctx, "audit append failed", withClientIP(ctx, []any{"action", string(action), "err", err})...)
	}

	if e.audit == nil {
		return
	}
	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	e.audit.Emit(ctx, AuditEvent{
		ID:        record.ID,
		Timestamp: now,
		Action:    action,
		Actor:     actor,
		IP:        ClientIPFromContext(ctx),
		Details:   details,
		Metadata:  metadata,
	})
}

// AuditLog returns up to limit entries, newest first. limit is clamped to
// [1, Audit.ListLimit].
func (e *Engine) AuditLog(ctx context.Context, limit int) ([]AuditEntry, error) {
	if e == nil || e.auditLog == nil {
		return nil, ErrEngineNotReady
	}
	if limit <= 0 {
		limit = 1
	}
	if limit > e.config.Audit.ListLimit {
		limit = e.config.Audit.ListLimit
	}

	records, err := e.auditLog.List(ctx, limit)
	if err != nil {
		return nil, storeError(err)
	}
	entries := make([]AuditEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, AuditEntry{
			ID:        r.ID,
			Action:    AuditAction(r.Action),
			Details:   r.Details,
			Actor:     r.Actor,
			CreatedAt: fromMillis(r.CreatedAt),
		})
	}
	return entries, nil
}

// ClearAuditLog deletes every entry and leaves a single SYSTEM_WIPE marker
// naming actor.
func (e *Engine) ClearAuditLog(ctx context.Context, actor string) error {
	if e == nil || e.auditLog == nil {
		return ErrEngineNotReady
	}
	if actor == "" {
		actor = adminActor
	}

	marker := stores.AuditRecord{
		ID:        e.newID(),
		Action:    string(AuditSystemWipe),
		Details:   "Audit log cleared",
		Actor:     actor,
		CreatedAt: e.now().UnixMilli(),
	}
	if err := e.auditLog.Clear(ctx, marker); err != nil {
		return storeError(err)
	}
	e.metricInc(MetricAuditCleared)
	e.logger.Info(ctx, "audit log cleared", withClientIP(ctx, []any{"actor", actor})...)

	if e.audit != nil {
		e.audit.Emit(ctx, AuditEvent{
			ID:        marker.ID,
			Timestamp: fromMillis(marker.CreatedAt),
			Action:    AuditSystemWipe,
			Actor:     actor,
			IP:        ClientIPFromContext(ctx),
			Details:   marker.Details,
		})
	}
	return nil
}

// RecordRateLimited notes a rejected request. The HTTP layer calls it once
// per source and window, on the first denial.
func (e *Engine) RecordRateLimited(ctx context.Context, category string, limit int, retryAfter time.Duration) {
	if e == nil {
		return
	}
	e.metricInc(MetricRateLimitHit)
	ip := ClientIPFromContext(ctx)
	e.emitAudit(ctx, AuditRateLimited, systemActor,
		"Rate limit exceeded for "+ip+" on "+category+" routes",
		func() map[string]string {
			return map[string]string{
				"category":    category,
				"limit":       strconv.Itoa(limit),
				"retry_after": strconv.Itoa(int(retryAfter.Seconds())),
			}
		})
}
