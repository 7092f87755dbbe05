package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"cabinetkey/models"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("find key: %w", models.ErrNotFound), http.StatusNotFound},
		{models.ErrConflict, http.StatusConflict},
		{models.ErrNotHolder, http.StatusConflict},
		{models.ErrPermissionDenied, http.StatusForbidden},
		{models.ErrInvalidInput, http.StatusBadRequest},
		{models.NewFault("borrow", errors.New("connection refused")), http.StatusServiceUnavailable},
		{errors.New("unexpected"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}
