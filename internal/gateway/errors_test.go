package gateway

import (
	"errors"
	"net/http"
	"testing"

	"agentpoker/internal/engine"
)

func TestStatusForMapsEveryKind(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errValidation("bad body"), http.StatusBadRequest},
		{errPrecondition("not your turn"), http.StatusBadRequest},
		{errUnauthenticated("no bearer"), http.StatusUnauthorized},
		{errForbidden("banned"), http.StatusForbidden},
		{errConflict("name taken"), http.StatusConflict},
		{errRateLimited("slow down", 30), http.StatusTooManyRequests},
		{errNotFound("no such table"), http.StatusNotFound},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestFromEngineErrorMapsToPrecondition(t *testing.T) {
	engineErr := &engine.Error{Code: engine.CodeBelowMinRaise, Message: "raise to 50 below minimum 80"}
	ge := fromEngineError(engineErr)
	if statusFor(ge) != http.StatusBadRequest {
		t.Fatalf("engine errors must surface as 400, got %d", statusFor(ge))
	}
	if ge.Error() != engineErr.Error() {
		t.Fatalf("engine error message must be preserved: %q vs %q", ge.Error(), engineErr.Error())
	}
}

func TestAPIKeyHashIsStableAndOpaque(t *testing.T) {
	token, err := newAPIKey()
	if err != nil {
		t.Fatalf("newAPIKey: %v", err)
	}
	if len(token) < 32 {
		t.Fatalf("token too short: %d chars", len(token))
	}
	h1, h2 := hashAPIKey(token), hashAPIKey(token)
	if h1 != h2 {
		t.Fatalf("hash must be deterministic")
	}
	if len(h1) != 64 {
		t.Fatalf("expected hex SHA-256 (64 chars), got %d", len(h1))
	}
	if h1 == token {
		t.Fatalf("hash must not equal the token")
	}
}
