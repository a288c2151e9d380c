// internal/api/handlers/handler.go
package handlers

// Handler groups every HTTP handler for injection into the router as a
// single dependency.
type Handler struct {
	VerifyHandler *VerifyHandler
	HealthHandler *HealthHandler
}

// NewHandler builds a Handler from its constituent handlers.
func NewHandler(verifyHandler *VerifyHandler, healthHandler *HealthHandler) *Handler {
	return &Handler{
		VerifyHandler: verifyHandler,
		HealthHandler: healthHandler,
	}
}
