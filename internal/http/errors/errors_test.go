package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError_Status(t *testing.T) {
	cases := map[error]int{
		domain.ErrInvalidCredentials: http.StatusUnauthorized,
		domain.ErrInvitationRequired: http.StatusForbidden,
		domain.ErrAccountBanned:      http.StatusForbidden,
		domain.ErrNotFound:           http.StatusNotFound,
		domain.ErrExpired:            http.StatusGone,
		domain.ErrConflict:           http.StatusConflict,
		domain.ErrServiceUnavailable: http.StatusServiceUnavailable,
		fmt.Errorf("boom"):           http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, FromError(err).HTTPStatus, err.Error())
	}
}

func TestWriteError_Throttled(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, domain.Throttled(1500*time.Millisecond))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "throttled", body["code"])
	assert.NotEmpty(t, body["error"])
}

func TestWriteError_HidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, domain.ErrInternal.WithCause(fmt.Errorf("pq: password authentication failed")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pq:")
}

func TestWriteError_Fields(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, domain.Validation(map[string]string{"email": "email_invalid"}))

	var body struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation", body.Code)
	assert.Equal(t, "email_invalid", body.Fields["email"])
}
