package middleware

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
)

// APIGatewayHandler is a function that handles API Gateway requests
type APIGatewayHandler func(context.Context, *slog.Logger, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// Middleware wraps a handler
type Middleware interface {
	Handle(next APIGatewayHandler) APIGatewayHandler
}

// Chain applies middlewares so the first one listed runs outermost
func Chain(handler APIGatewayHandler, middlewares ...Middleware) APIGatewayHandler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i].Handle(handler)
	}
	return handler
}

// Lambda adapts a handler to the signature expected by lambda.Start
func Lambda(logger *slog.Logger, handler APIGatewayHandler) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return func(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return handler(ctx, logger, request)
	}
}
