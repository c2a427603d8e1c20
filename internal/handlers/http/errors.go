package http

import (
	"errors"

	"livegrid/internal/core/domain"
	"livegrid/internal/infrastructure/roomservice"
	"livegrid/pkg/circuitbreaker"
	apperrors "livegrid/pkg/errors"

	"github.com/gin-gonic/gin"
)

// toAppError maps service errors onto API error kinds.
func toAppError(err error) *apperrors.AppError {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return appErr
	}

	var upstream *roomservice.UpstreamError
	switch {
	case errors.Is(err, domain.ErrUnknownRole),
		errors.Is(err, domain.ErrInvalidGrant),
		errors.Is(err, domain.ErrInvalidResult),
		errors.Is(err, domain.ErrInvalidRoomOptions),
		errors.Is(err, domain.ErrRedirectNotAllowed):
		return apperrors.NewInvalidInputError(err.Error())
	case errors.Is(err, domain.ErrResultNotFound):
		return apperrors.NewNotFoundError("result")
	case errors.Is(err, domain.ErrSSOUnauthenticated):
		return apperrors.NewSSOUnauthenticatedError("identity provider reported no active session")
	case errors.Is(err, domain.ErrSSOVerification):
		return apperrors.NewUnauthorizedError("SSO session could not be verified")
	case errors.Is(err, circuitbreaker.ErrOpen):
		return apperrors.NewServiceUnavailableError("room service temporarily unavailable", err)
	case errors.As(err, &upstream):
		return apperrors.NewBadGatewayError("room service rejected the request", err).
			WithContext("upstream_status", upstream.StatusCode).
			WithContext("upstream_code", upstream.Code).
			WithContext("upstream_message", upstream.Message)
	default:
		return apperrors.NewInternalError("internal error", err)
	}
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(toAppError(err))
	c.Abort()
}
