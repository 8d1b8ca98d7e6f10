package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/escrow-market/internal/api"
	"github.com/rickgao/escrow-market/internal/ledger"
	"github.com/rickgao/escrow-market/internal/market"
	"github.com/rickgao/escrow-market/internal/registry"
)

// Codes for errors raised outside the engine.
const (
	CodeInvalidRequest      = "InvalidRequest"
	CodeUnauthorized        = "Unauthorized"
	CodeInsufficientBalance = "InsufficientBalance"
	CodeBalanceOverflow     = "BalanceOverflow"
	CodeTokenNotFound       = "TokenNotFound"
	CodeNoPermission        = "NoPermission"
	CodeClassNotFound       = "ClassNotFound"
	CodeClassNotEmpty       = "ClassNotEmpty"
	CodeMetadataTooLarge    = "MetadataTooLarge"
	CodeIDsExhausted        = "IDsExhausted"
	CodeRollbackFailed      = "RollbackFailed"
	CodeUnavailable         = "Unavailable"
	CodeInternal            = "Internal"
)

// classify maps an engine or capability error to a status and code.
func classify(err error) (int, string) {
	// A failed rollback also matches its cause, so check it first.
	if errors.Is(err, market.ErrRollbackFailed) {
		return http.StatusInternalServerError, CodeRollbackFailed
	}

	if e, ok := market.AsError(err); ok {
		switch e.Category {
		case market.CategoryValidation:
			return http.StatusBadRequest, e.Code
		case market.CategoryAuthorization:
			return http.StatusForbidden, e.Code
		case market.CategoryState:
			if market.IsNotExist(err) {
				return http.StatusNotFound, e.Code
			}
			return http.StatusConflict, e.Code
		}
	}

	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusPaymentRequired, CodeInsufficientBalance
	case errors.Is(err, ledger.ErrBalanceOverflow):
		return http.StatusUnprocessableEntity, CodeBalanceOverflow
	case errors.Is(err, registry.ErrTokenNotFound):
		return http.StatusUnprocessableEntity, CodeTokenNotFound
	case errors.Is(err, registry.ErrNoPermission):
		return http.StatusUnprocessableEntity, CodeNoPermission
	case errors.Is(err, registry.ErrClassNotFound):
		return http.StatusNotFound, CodeClassNotFound
	case errors.Is(err, registry.ErrCannotDestroyClass):
		return http.StatusConflict, CodeClassNotEmpty
	case errors.Is(err, registry.ErrMetadataTooLarge):
		return http.StatusBadRequest, CodeMetadataTooLarge
	case errors.Is(err, registry.ErrNoAvailableClassID), errors.Is(err, registry.ErrNoAvailableTokenID):
		return http.StatusConflict, CodeIDsExhausted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, CodeUnavailable
	}
	return http.StatusInternalServerError, CodeInternal
}

// respondError writes err and returns its code. Internal details of 5xx
// errors stay in the log.
func (s *Server) respondError(c *gin.Context, err error) string {
	status, code := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"code", code,
			"error", err,
		)
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, api.ErrorResponse{Error: msg, Code: code})
	return code
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, api.ErrorResponse{Error: msg, Code: CodeInvalidRequest})
}
