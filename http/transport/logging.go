package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// NewLoggingTransport logs every request and its response at debug level.
// Each request gets a correlation id (UUID v7) shared by its log entries.
// A nil transport uses http.DefaultTransport and a nil logger slog.Default().
func NewLoggingTransport(transport http.RoundTripper, logger *slog.Logger) http.RoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &loggingTransport{
		transport: transport,
		logger:    logger,
	}
}

type loggingTransport struct {
	transport http.RoundTripper
	logger    *slog.Logger
}

var _ http.RoundTripper = (*loggingTransport)(nil)

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	logger := t.logger
	if logger == nil {
		logger = slog.Default()
	}

	correlationID := uuid.Must(uuid.NewV7()).String()
	ctx := req.Context()
	started := time.Now()

	logger.DebugContext(ctx, "HTTP request",
		"correlation_id", correlationID,
		"method", req.Method,
		"url", req.URL.Redacted(),
	)

	rsp, err := t.transport.RoundTrip(req)
	if err != nil {
		logger.WarnContext(ctx, "HTTP request failed",
			"correlation_id", correlationID,
			"method", req.Method,
			"url", req.URL.Redacted(),
			"duration_ms", time.Since(started).Milliseconds(),
			"error", err,
		)

		return rsp, err
	}

	logger.DebugContext(ctx, "HTTP response",
		"correlation_id", correlationID,
		"status", rsp.StatusCode,
		"content_encoding", rsp.Header.Get("Content-Encoding"),
		"duration_ms", time.Since(started).Milliseconds(),
	)

	return rsp, nil
}
