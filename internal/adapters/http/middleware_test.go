package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestRequestIDMiddlewareEchoesValidInboundID(t *testing.T) {
	inbound := uuid.NewString()
	handler := newTestHandler(&stubSearch{}, &stubAsk{}, TrafficConfig{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, inbound)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get(requestIDHeader); got != inbound {
		t.Fatalf("valid inbound request id must be echoed, got %q want %q", got, inbound)
	}
}

func TestRequestIDMiddlewareReplacesMalformedInboundID(t *testing.T) {
	handler := newTestHandler(&stubSearch{}, &stubAsk{}, TrafficConfig{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, `not-a-uuid "log injection"`)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	got := res.Header().Get(requestIDHeader)
	if _, err := uuid.Parse(got); err != nil {
		t.Fatalf("response request id must be a valid uuid, got %q", got)
	}
	if got == `not-a-uuid "log injection"` {
		t.Fatalf("malformed inbound id must be replaced")
	}
}
