package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", ErrValidation, http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("email: %w", ErrValidation), http.StatusBadRequest},
		{"conflict", ErrConflict, http.StatusConflict},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"unauthenticated", ErrUnauthenticated, http.StatusUnauthorized},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondError(rr, tc.err)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			var problem ProblemDetail
			if err := json.Unmarshal(rr.Body.Bytes(), &problem); err != nil {
				t.Fatalf("decode problem: %v", err)
			}
			if problem.Status != tc.status {
				t.Fatalf("problem status %d != header %d", problem.Status, tc.status)
			}
		})
	}
}

func TestRespondErrorHidesInternals(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("pq: connection refused at 10.0.0.5"))

	var problem ProblemDetail
	if err := json.Unmarshal(rr.Body.Bytes(), &problem); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if problem.Detail != "" {
		t.Fatalf("internal error detail must be empty, got %q", problem.Detail)
	}
}

func TestRespondErrorUnauthenticatedIsGeneric(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("token expired for user 42: %w", ErrUnauthenticated))

	var problem ProblemDetail
	if err := json.Unmarshal(rr.Body.Bytes(), &problem); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if problem.Detail != "unauthenticated" {
		t.Fatalf("401 detail must not leak the cause, got %q", problem.Detail)
	}
}
