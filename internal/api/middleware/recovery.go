package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/aws/aws-lambda-go/events"

	"github.com/hirosato/finance-assistant/internal/api/response"
	"github.com/hirosato/finance-assistant/internal/domain/errors"
)

// RecoveryMiddleware turns panics and returned errors into error responses
type RecoveryMiddleware struct{}

// NewRecoveryMiddleware creates a new recovery middleware
func NewRecoveryMiddleware() RecoveryMiddleware {
	return RecoveryMiddleware{}
}

// Handle handles the recovery middleware
func (m RecoveryMiddleware) Handle(next APIGatewayHandler) APIGatewayHandler {
	return func(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
		requestID := RequestID(ctx, request)

		defer func() {
			if r := recover(); r != nil {
				logger.Error("Handler panicked", "panic", r, "stack", string(debug.Stack()), "requestId", requestID)
				resp = response.Error(errors.NewInternalError("An unexpected error occurred", fmt.Errorf("%v", r)), requestID)
				err = nil
			}
		}()

		resp, err = next(ctx, logger, request)
		if err != nil {
			logger.Error("Handler failed", "error", err, "requestId", requestID)
			return response.Error(err, requestID), nil
		}
		return resp, nil
	}
}
