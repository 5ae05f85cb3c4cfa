package service

import (
	"context"
	"errors"

	"mediaapi/internal/storage"
)

// reap removes a raw upload once it is no longer needed. It runs even when the
// request context is already done, and never returns an error: a failed
// removal is logged so it cannot mask the result of the step it follows.
func (s *uploadService) reap(ctx context.Context, key string) {
	err := s.store.Delete(context.WithoutCancel(ctx), key)
	if err == nil || errors.Is(err, storage.ErrObjectNotFound) {
		return
	}
	s.metrics.cleanupFailed()
	s.log.Error("temp_file_cleanup_failed", err, map[string]any{
		"component": "upload",
		"key":       key,
	})
}
