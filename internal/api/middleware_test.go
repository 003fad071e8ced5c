package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func newSignatureTestServer(secret string) (http.Handler, *bool) {
	reached := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	return GatewaySignatureMiddleware(secret)(inner), &reached
}

func TestGatewaySignatureMiddleware_AcceptsValidSignature(t *testing.T) {
	handler, reached := newSignatureTestServer("webhook-secret")
	body := []byte(`{"transaction_number":"TXN-6001"}`)

	req := httptest.NewRequest(http.MethodPost, "/payments/confirm", bytes.NewReader(body))
	req.Header.Set(gatewaySignatureHeader, signBody("webhook-secret", body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !*reached {
		t.Fatal("expected the inner handler to run")
	}
}

func TestGatewaySignatureMiddleware_RejectsInvalidSignature(t *testing.T) {
	handler, reached := newSignatureTestServer("webhook-secret")
	body := []byte(`{"transaction_number":"TXN-6002"}`)

	req := httptest.NewRequest(http.MethodPost, "/payments/confirm", bytes.NewReader(body))
	req.Header.Set(gatewaySignatureHeader, signBody("different-secret", body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if *reached {
		t.Fatal("the inner handler must not run on a bad signature")
	}
}

func TestGatewaySignatureMiddleware_RejectsMissingSignature(t *testing.T) {
	handler, reached := newSignatureTestServer("webhook-secret")

	req := httptest.NewRequest(http.MethodPost, "/payments/confirm", bytes.NewReader([]byte("{}")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if *reached {
		t.Fatal("the inner handler must not run without a signature")
	}
}

func TestGatewaySignatureMiddleware_EmptySecretDisablesValidation(t *testing.T) {
	handler, reached := newSignatureTestServer("")

	req := httptest.NewRequest(http.MethodPost, "/payments/confirm", bytes.NewReader([]byte("{}")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !*reached {
		t.Fatal("expected pass-through when no secret is configured")
	}
}
