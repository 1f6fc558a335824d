package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arthurmvo/Coffee-Shop/authz"
	"github.com/arthurmvo/Coffee-Shop/services"
	"github.com/arthurmvo/Coffee-Shop/utils"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		expectedStatus  int
		expectedMessage string
	}{
		{"not found", services.ErrDrinkNotFound, http.StatusNotFound, "resource not found"},
		{"validation", services.ErrInvalidInput, http.StatusBadRequest, "Bad Request"},
		{"conflict", services.ErrDuplicateTitle, http.StatusConflict, "drink title already exists"},
		{"internal", services.WrapInternal("failed", errors.New("secret detail")), http.StatusInternalServerError, "Internal Server Error"},
		{"unknown", errors.New("plain"), http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err, zap.NewNop())

			assert.Equal(t, tt.expectedStatus, w.Code)
			var response utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.False(t, response.Success)
			assert.Equal(t, tt.expectedStatus, response.Error)
			assert.Equal(t, tt.expectedMessage, response.Message)
		})
	}
}

func TestHandleServiceError_ValidationDetails(t *testing.T) {
	err := services.NewDomainError(services.ErrorTypeValidation, "invalid input", nil).
		WithDetail("title", "title is required")

	w := httptest.NewRecorder()
	HandleServiceError(w, err, zap.NewNop())

	assert.JSONEq(t, `{"success":false,"error":400,"message":"Bad Request","details":{"title":"title is required"}}`, w.Body.String())
}

func TestHandleServiceError_LogsInternal(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)

	HandleServiceError(httptest.NewRecorder(), services.WrapInternal("failed to list drinks", errors.New("timeout")), zap.New(core))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "internal server error", logs.All()[0].Message)
}

func TestHandleServiceError_Nil(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, nil, zap.NewNop())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestAuthErrorHandler(t *testing.T) {
	handler := NewAuthErrorHandler(zap.NewNop())

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodGet, "/drinks-detail", nil), authz.ErrMissingAuthHeader)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
		assert.JSONEq(t, `{"success":false,"error":401,"message":"authorization header is expected"}`, w.Body.String())
	})

	t.Run("insufficient permissions", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodPost, "/drinks", nil), authz.ErrInsufficientPermissions)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("WWW-Authenticate"))

		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, http.StatusForbidden, response.Error)
		assert.Equal(t, authz.ErrInsufficientPermissions.Description, response.Message)
	})
}
