package handlers

import (
	"net/http"

	"github.com/arthurmvo/Coffee-Shop/authz"
	"github.com/arthurmvo/Coffee-Shop/middleware"
	"github.com/arthurmvo/Coffee-Shop/services"
	"github.com/arthurmvo/Coffee-Shop/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)
	if len(details) == 0 {
		details = nil
	}

	var writeErr error
	switch {
	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, "")

	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, "", details)

	case services.IsConflictError(err):
		writeErr = utils.WriteConflict(w, "drink title already exists")

	case services.IsInternalError(err):
		// Internal details stay in the log
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w)

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w)
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleDecodeError answers a request whose body could not be decoded
func HandleDecodeError(w http.ResponseWriter, err error, logger *zap.Logger) {
	logger.Debug("invalid request body", zap.Error(err))
	if err := utils.WriteBadRequest(w, "", nil); err != nil {
		logger.Error("failed to write bad request response", zap.Error(err))
	}
}

// NewAuthErrorHandler returns the error channel for authorization failures.
// The body carries the failure's status and description.
func NewAuthErrorHandler(logger *zap.Logger) authz.ErrorHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, err *authz.AuthorizationError) {
		if challenge := err.Challenge(); challenge != "" {
			w.Header().Set("WWW-Authenticate", challenge)
		}
		if writeErr := utils.WriteError(w, err.Status, err.Description, nil); writeErr != nil {
			logger.Error("failed to write authorization error response",
				zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
				zap.Error(writeErr))
		}
	}
}
