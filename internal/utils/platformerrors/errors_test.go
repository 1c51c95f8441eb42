package platformerrors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsErrorKeepsInnerType(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	inner := NewError(ctx, LayerRepository, ErrorTypeNotFound, "conversation not found", nil, "uuid-1")

	wrapped := AsError(ctx, LayerDomain, inner, "load conversation")

	assert.Equal(t, ErrorTypeNotFound, wrapped.Type)
	assert.Equal(t, "uuid-1", wrapped.UUID)
	assert.Equal(t, "req-1", wrapped.RequestID)
	assert.True(t, IsErrorType(wrapped, ErrorTypeNotFound))
	assert.ErrorIs(t, wrapped, inner)
}

func TestAsErrorDefaultsToInternal(t *testing.T) {
	wrapped := AsError(context.Background(), LayerInfrastructure, errors.New("boom"), "dial redis")
	assert.Equal(t, ErrorTypeInternal, wrapped.Type)
	assert.NotEmpty(t, wrapped.UUID)

	assert.Nil(t, AsError(context.Background(), LayerDomain, nil, "noop"))
}

func TestWriteError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantType string
	}{
		{
			name:     "external",
			err:      NewError(context.Background(), LayerDomain, ErrorTypeExternal, "dispatch failed", nil, ""),
			wantCode: http.StatusBadGateway,
			wantType: "external_error",
		},
		{
			name:     "forbidden",
			err:      NewError(context.Background(), LayerHandler, ErrorTypeForbidden, "not yours", nil, ""),
			wantCode: http.StatusForbidden,
			wantType: "forbidden_error",
		},
		{
			name:     "plain error",
			err:      errors.New("unexpected"),
			wantCode: http.StatusInternalServerError,
			wantType: "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			WriteError(c, tt.err, zerolog.Nop())

			require.Equal(t, tt.wantCode, w.Code)
			var body HTTPErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantType, body.Error.Type)
		})
	}
}
