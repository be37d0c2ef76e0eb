package handler

import (
	"context"

	"github.com/veilchat/veilchat/internal/api/middleware"
)

// GetCallerJID retrieves the authenticated caller's JID from the context.
// This is a convenience wrapper around middleware.GetCallerJID.
func GetCallerJID(ctx context.Context) string {
	return middleware.GetCallerJID(ctx)
}
