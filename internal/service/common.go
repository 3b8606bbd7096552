package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/swimming-pool-reservation/internal/logger"
	"github.com/iliyamo/swimming-pool-reservation/internal/repository"
	"github.com/iliyamo/swimming-pool-reservation/internal/storage"
)

const publishTimeout = 3 * time.Second

// publish sends an event after commit.  Failures are logged and dropped:
// the database is the source of truth and notifications are best-effort.
func publish(ctx context.Context, events EventPublisher, log logger.ILogger, queue string, event any) {
	if events == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := events.Publish(pctx, queue, event); err != nil {
		log.Warn("events", "publish failed", map[string]interface{}{"queue": queue, "error": err.Error()})
	}
}

// discardBlob removes an upload whose database write was rolled back.
func discardBlob(ctx context.Context, blobs storage.BlobStore, log logger.ILogger, module, url string) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := blobs.Delete(dctx, url); err != nil {
		log.Warn(module, "orphaned upload not removed", map[string]interface{}{"url": url, "error": err.Error()})
	}
}

// asServiceError passes *Error through and wraps anything else as a store
// failure, logging the cause.
func asServiceError(log logger.ILogger, module, op string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	log.Error(module, op+" failed", map[string]interface{}{"error": err})
	return storeErr(op, err)
}

func isNotFound(err error) bool { return errors.Is(err, repository.ErrNotFound) }

func isConflict(err error) bool { return errors.Is(err, repository.ErrConflict) }

// parseDate accepts YYYY-MM-DD.
func parseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return "", false
	}
	return s, true
}

// parseClock accepts HH:MM or HH:MM:SS and returns HH:MM:SS.
func parseClock(s string) (string, time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05"), t, true
		}
	}
	return "", time.Time{}, false
}

// endOfDay returns 23:59:59 of t's calendar day in t's location.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}
