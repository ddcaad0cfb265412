// Package middleware provides shared request-context helpers for the
// DineHall gateway.
//
// This package lives in pkg/ (not internal/) so that a hosting runtime
// can read and seed the client context around the gateway's handlers.
package middleware

import (
	"context"

	"github.com/dinehall/dinehall/gateway/pkg/models"
)

type contextKey string

const clientContextKey contextKey = "client_context"

// SetClientContext stores the per-request client context.
func SetClientContext(ctx context.Context, cc models.ClientContext) context.Context {
	return context.WithValue(ctx, clientContextKey, cc)
}

// GetClientContext retrieves the per-request client context. A zero
// value means the extractor middleware did not run.
func GetClientContext(ctx context.Context) models.ClientContext {
	if v, ok := ctx.Value(clientContextKey).(models.ClientContext); ok {
		return v
	}
	return models.ClientContext{}
}
