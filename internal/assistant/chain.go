package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/dialogflow-bridge/pkg/logging"
)

// FallbackFetcher wraps a primary fetcher with a secondary provider that is
// tried when the primary is unavailable.
type FallbackFetcher struct {
	primary   Fetcher
	secondary Fetcher
	logger    *logging.Logger
}

// NewFallbackFetcher creates a fallback-enabled fetcher. A nil secondary
// leaves the primary's result untouched.
func NewFallbackFetcher(primary, secondary Fetcher, logger *logging.Logger) *FallbackFetcher {
	if primary == nil {
		panic("assistant: primary fetcher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackFetcher{primary: primary, secondary: secondary, logger: logger}
}

// FetchReply tries the primary, then the secondary on ErrCollaboratorUnavailable.
func (f *FallbackFetcher) FetchReply(ctx context.Context, sessionKey, utterance, languageCode string) (RawReply, error) {
	raw, err := f.primary.FetchReply(ctx, sessionKey, utterance, languageCode)
	if err == nil || !errors.Is(err, ErrCollaboratorUnavailable) || f.secondary == nil {
		return raw, err
	}

	f.logger.Warn("primary collaborator failed, attempting fallback", "error", err.Error())
	raw, fallbackErr := f.secondary.FetchReply(ctx, sessionKey, utterance, languageCode)
	if fallbackErr != nil {
		f.logger.Error("fallback collaborator also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return RawReply{}, fallbackErr
	}
	f.logger.Info("fallback collaborator succeeded after primary failure")
	return raw, nil
}

// TimeoutFetcher bounds every call. The wrapped fetcher runs on its own
// goroutine so a client that ignores cancellation still cannot hold the
// request past the deadline.
type TimeoutFetcher struct {
	next    Fetcher
	timeout time.Duration
}

// WithTimeout wraps next with a per-call deadline. Non-positive timeouts disable it.
func WithTimeout(next Fetcher, timeout time.Duration) Fetcher {
	if timeout <= 0 {
		return next
	}
	return &TimeoutFetcher{next: next, timeout: timeout}
}

type fetchResult struct {
	raw RawReply
	err error
}

// FetchReply calls the wrapped fetcher and reports expiry as ErrCollaboratorUnavailable.
func (f *TimeoutFetcher) FetchReply(ctx context.Context, sessionKey, utterance, languageCode string) (RawReply, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fetchResult{err: fmt.Errorf("%w: fetcher panicked: %v", ErrCollaboratorUnavailable, rec)}
			}
		}()
		raw, err := f.next.FetchReply(ctx, sessionKey, utterance, languageCode)
		done <- fetchResult{raw: raw, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && ctx.Err() != nil && !errors.Is(res.err, ErrCollaboratorUnavailable) {
			return RawReply{}, fmt.Errorf("%w: %w", ErrCollaboratorUnavailable, res.err)
		}
		return res.raw, res.err
	case <-ctx.Done():
		return RawReply{}, fmt.Errorf("%w: %w", ErrCollaboratorUnavailable, ctx.Err())
	}
}
