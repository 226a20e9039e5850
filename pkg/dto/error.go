package dto

import "github.com/dimitrije/listshub-api/internal/entitlement"

type ErrorResponse struct {
	Error string `json:"error"`
}

// EntitlementErrorResponse is returned with 403 when a plan limit refuses an
// action, so clients can render an upgrade prompt.
type EntitlementErrorResponse struct {
	Error    string               `json:"error"`
	Action   entitlement.Action   `json:"action"`
	Decision entitlement.Decision `json:"decision"`
}
