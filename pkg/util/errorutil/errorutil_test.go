package errorutil_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fixzit/fm-service/internal/calendar"
	"github.com/fixzit/fm-service/internal/domain"
	"github.com/fixzit/fm-service/internal/idempotency"
	"github.com/fixzit/fm-service/internal/repository"
	"github.com/fixzit/fm-service/internal/workflow"
	"github.com/fixzit/fm-service/pkg/util/errorutil"
)

func TestToDomainError_MapsSentinels(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"not found", fmt.Errorf("load: %w", repository.ErrNotFound), errorutil.CodeNotFound, http.StatusNotFound},
		{"version conflict", repository.ErrVersionConflict, errorutil.CodeConflict, http.StatusConflict},
		{"bad calendar", fmt.Errorf("%w: no working days", calendar.ErrInvalidConfig), errorutil.CodeConfiguration, http.StatusInternalServerError},
		{"bad hours", calendar.ErrInvalidSLAHours, errorutil.CodeValidation, http.StatusBadRequest},
		{"in flight", idempotency.ErrInFlight, errorutil.CodeRequestInFlight, http.StatusConflict},
		{"key reused", idempotency.ErrKeyReused, errorutil.CodeConflict, http.StatusConflict},
		{"unknown", errors.New("boom"), errorutil.CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := errorutil.ToDomainError(tc.err)
			assert.Equal(t, tc.code, got.Code)
			assert.Equal(t, tc.status, got.HTTPStatus)
		})
	}
	assert.Nil(t, errorutil.ToDomainError(nil))
}

func TestToDomainError_TransitionErrorNamesBothStates(t *testing.T) {
	err := &workflow.TransitionError{Kind: domain.KindWorkOrder, From: "CLOSED", To: "ASSIGNED"}

	got := errorutil.ToDomainError(err)
	assert.Equal(t, errorutil.CodeIllegalTransition, got.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, got.HTTPStatus)
	assert.Equal(t, "CLOSED", got.Details["current_status"])
	assert.Equal(t, "ASSIGNED", got.Details["requested_status"])
	assert.ErrorIs(t, got, workflow.ErrIllegalTransition)
}

func TestNewStaleState_IsVersionConflict(t *testing.T) {
	err := errorutil.NewStaleState("work_order", "wo-1", "ASSIGNED", "ASSIGNED")
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
	assert.Contains(t, err.Error(), "changed by someone else")
}
