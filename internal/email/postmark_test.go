package email

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendVerificationCode(t *testing.T) {
	var gotToken string
	var gotPayload postmarkEmail

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotPayload)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("test-token", "votes@example.org", WithAPIURL(srv.URL))
	if err := c.SendVerificationCode(context.Background(), "alice@example.com", "123456"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want test-token", gotToken)
	}
	if gotPayload.To != "alice@example.com" {
		t.Errorf("to = %q, want alice@example.com", gotPayload.To)
	}
	if gotPayload.From != "votes@example.org" {
		t.Errorf("from = %q, want votes@example.org", gotPayload.From)
	}
	if !strings.Contains(gotPayload.TextBody, "123456") {
		t.Errorf("text body does not contain the code: %q", gotPayload.TextBody)
	}
}

func TestSendVerificationCodeRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("test-token", "votes@example.org", WithAPIURL(srv.URL))
	if err := c.SendVerificationCode(context.Background(), "alice@example.com", "123456"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestSendVerificationCodeNoRetryOnClientError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient("bad-token", "votes@example.org", WithAPIURL(srv.URL))
	if err := c.SendVerificationCode(context.Background(), "alice@example.com", "123456"); err == nil {
		t.Fatal("expected error for 4xx response")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (4xx must not be retried)", calls)
	}
}

func TestSendVerificationCodeUnconfigured(t *testing.T) {
	c := NewClient("", "votes@example.org")
	if err := c.SendVerificationCode(context.Background(), "alice@example.com", "123456"); err == nil {
		t.Fatal("expected error when server token is missing")
	}
}
