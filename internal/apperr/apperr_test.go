package apperr_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"bloodlink/backend/internal/apperr"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unauthorized", apperr.Unauthorized.New("no token"), http.StatusUnauthorized},
		{"forbidden", apperr.Forbidden.New("admin only"), http.StatusForbidden},
		{"invalid argument", apperr.InvalidArgument.New("content is required"), http.StatusBadRequest},
		{"not found", apperr.NotFound.New("donor"), http.StatusNotFound},
		{"store failure", apperr.StoreFailure.Wrap(errors.New("connection refused")), http.StatusInternalServerError},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperr.HTTPStatus(tt.err))
		})
	}
}

func TestPublicMessage_HidesStoreCause(t *testing.T) {
	err := apperr.StoreFailure.Wrap(errors.New("dial tcp 10.0.0.3:5432: connection refused"))
	assert.Equal(t, "Server error", apperr.PublicMessage(err))

	err = apperr.InvalidArgument.New("content is required")
	assert.Contains(t, apperr.PublicMessage(err), "content is required")
}
