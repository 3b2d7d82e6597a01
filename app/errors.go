package app

import "github.com/charmbracelet/log"

// ErrorHandler receives errors surfaced off the audio thread — worker
// failures, capacity rejections — for whatever a
// host wants to do with them beyond the patch:Error message already
// posted to ToUI (spec §7: "no error is ever raised synchronously on
// the audio thread; all errors become messages").
type ErrorHandler interface {
	HandleError(error)
}

// DefaultErrorHandler discards the error; used when a host has nothing
// beyond the ring's patch:Error to react to.
type DefaultErrorHandler struct{}

func (DefaultErrorHandler) HandleError(error) {}

// LoggingErrorHandler logs through logFn, then forwards to Underlying
// if set.
type LoggingErrorHandler struct {
	Underlying ErrorHandler
	logFn      func(error)
}

// NewLoggingErrorHandler wraps underlying (nil is fine) with logging
// via logger, matching the teacher's two-constructor-args shape.
func NewLoggingErrorHandler(underlying ErrorHandler, logger *log.Logger) *LoggingErrorHandler {
	return &LoggingErrorHandler{
		Underlying: underlying,
		logFn:      func(err error) { logger.Warn("app error", "err", err) },
	}
}

func (h *LoggingErrorHandler) HandleError(err error) {
	if h.logFn != nil {
		h.logFn(err)
	}
	if h.Underlying != nil {
		h.Underlying.HandleError(err)
	}
}

// CollectingErrorHandler records every error it sees, for tests that
// need to assert on what the app reported rather than just that it
// didn't panic.
type CollectingErrorHandler struct {
	Errors []error
}

func (h *CollectingErrorHandler) HandleError(err error) {
	h.Errors = append(h.Errors, err)
}
