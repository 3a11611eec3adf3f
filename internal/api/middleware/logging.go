package middleware

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
)

type requestIDKey struct{}

// RequestID returns the id assigned by the logging middleware, the API
// Gateway request id, or a fresh uuid, in that order.
func RequestID(ctx context.Context, request events.APIGatewayProxyRequest) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	if request.RequestContext.RequestID != "" {
		return request.RequestContext.RequestID
	}
	return uuid.NewString()
}

// LoggingMiddleware logs requests and responses with a request-scoped logger
type LoggingMiddleware struct {
	logBodies bool
}

// NewLoggingMiddleware creates a new logging middleware. Bodies are logged only when logBodies is set.
func NewLoggingMiddleware(logBodies bool) LoggingMiddleware {
	return LoggingMiddleware{logBodies: logBodies}
}

// Handle handles the logging middleware
func (m LoggingMiddleware) Handle(next APIGatewayHandler) APIGatewayHandler {
	return func(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		startTime := time.Now()

		requestID := RequestID(ctx, request)
		ctx = context.WithValue(ctx, requestIDKey{}, requestID)
		logger = logger.With("requestId", requestID)

		attrs := []any{
			"method", request.HTTPMethod,
			"path", request.Path,
			"headers", maskSensitiveHeaders(request.Headers),
		}
		if m.logBodies && request.Body != "" {
			attrs = append(attrs, "body", request.Body)
		}
		logger.Info("REQUEST", attrs...)

		response, err := next(ctx, logger, request)

		attrs = []any{"status", response.StatusCode, "duration", time.Since(startTime)}
		if err != nil {
			attrs = append(attrs, "error", err)
		}
		if m.logBodies && response.Body != "" {
			attrs = append(attrs, "body", response.Body)
		}
		logger.Info("RESPONSE", attrs...)

		return response, err
	}
}

var sensitiveHeaders = []string{"authorization", "x-api-key", "cookie"}

// maskSensitiveHeaders masks sensitive headers
func maskSensitiveHeaders(headers map[string]string) map[string]string {
	masked := make(map[string]string, len(headers))
	for k, v := range headers {
		masked[k] = v
		for _, s := range sensitiveHeaders {
			if strings.EqualFold(k, s) {
				masked[k] = "***"
			}
		}
	}
	return masked
}
