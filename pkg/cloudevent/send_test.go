package cloudevent

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewAssignsUniqueIDs(t *testing.T) {
	t.Parallel()

	a := New("sizer.job.succeeded", "sizerbatch", "sample-a", map[string]any{"attempt": 0})
	b := New("sizer.job.succeeded", "sizerbatch", "sample-a", map[string]any{"attempt": 0})

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct non-empty IDs, got %q and %q", a.ID, b.ID)
	}
	if a.SpecVersion != "1.0" {
		t.Errorf("unexpected specversion %q", a.SpecVersion)
	}
}

func TestSendHeadersAndSignature(t *testing.T) {
	t.Parallel()

	var gotHeaders http.Header
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	event := New("sizer.run.completed", "sizerbatch", "delivery-01", map[string]any{"succeeded": 3})
	sender := NewSender(5 * time.Second)
	if err := sender.Send(context.Background(), srv.URL, event, "topsecret"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if got := gotHeaders.Get("Ce-Type"); got != "sizer.run.completed" {
		t.Errorf("Ce-Type = %q", got)
	}
	if got := gotHeaders.Get("Ce-Subject"); got != "delivery-01" {
		t.Errorf("Ce-Subject = %q", got)
	}

	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if got := gotHeaders.Get("X-Signature-256"); got != want {
		t.Errorf("signature mismatch: got %q want %q", got, want)
	}
}

func TestSendErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sender := NewSender(5 * time.Second)
	err := sender.Send(context.Background(), srv.URL, New("t", "s", "sub", nil), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if IsClientError(err) {
		t.Error("503 should not classify as client error")
	}
}

func TestIsClientError(t *testing.T) {
	t.Parallel()

	if !IsClientError(&HTTPError{StatusCode: 404}) {
		t.Error("404 should be a client error")
	}
	if IsClientError(&HTTPError{StatusCode: 500}) {
		t.Error("500 should not be a client error")
	}
	if IsClientError(context.Canceled) {
		t.Error("non-HTTP errors should not be client errors")
	}
}
