package handlers

import (
	"errors"
	"net/http"

	"github.com/dimitrije/listshub-api/internal/services"
	"github.com/dimitrije/listshub-api/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
	log "github.com/sirupsen/logrus"
)

var (
	notFoundErrors = []error{
		services.ErrUserNotFound, services.ErrFamilyNotFound, services.ErrInviteNotFound,
		services.ErrListNotFound, services.ErrItemNotFound, services.ErrPlanNotFound,
	}
	forbiddenErrors = []error{
		services.ErrNotFamilyOwner, services.ErrNotFamilyMember, services.ErrCannotRemoveOwner,
		services.ErrOnlyOwnerCanInvite, services.ErrOnlyOwnerCanRevoke, services.ErrMasterOnly,
	}
	conflictErrors = []error{
		services.ErrEmailTaken, services.ErrInviteConflict, services.ErrVersionConflict,
		services.ErrBillingConflict, services.ErrInviteNotPending, services.ErrAlreadyMember,
		services.ErrInviteCodeAmbiguous, services.ErrSeatLimitReached, services.ErrNoSeatsAvailable,
		services.ErrInviteMaxUses,
	}
	goneErrors = []error{services.ErrInviteExpired, services.ErrInviteRevoked}
)

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// respondError maps a service error onto the HTTP response. Unknown errors
// are logged and reported as 500 without detail.
func respondError(c *drift.Context, err error) {
	if ee, ok := services.IsEntitlementError(err); ok {
		_ = c.JSON(http.StatusForbidden, dto.EntitlementErrorResponse{
			Error:    ee.Error(),
			Action:   ee.Action,
			Decision: ee.Decision,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrNoActiveLink),
		errors.Is(err, services.ErrInvalidResetToken):
		c.BadRequest(err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		c.Unauthorized(err.Error())
	case isAny(err, notFoundErrors):
		c.NotFound(err.Error())
	case isAny(err, forbiddenErrors):
		c.Forbidden(err.Error())
	case isAny(err, conflictErrors):
		_ = c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
	case isAny(err, goneErrors):
		_ = c.JSON(http.StatusGone, dto.ErrorResponse{Error: err.Error()})
	default:
		log.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
		c.InternalServerError("internal server error")
	}
}
