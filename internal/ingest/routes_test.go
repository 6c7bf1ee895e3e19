package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/sxmlstream/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(svc *Service, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	svc.Router().ServeHTTP(rr, req)
	return rr
}

func TestHealthRoute(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t, nil)
	rr := serve(svc, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" || body["start_tag"] != "msg" || body["mode"] != "notify" {
		t.Fatalf("unexpected health body: %#v", body)
	}
}

func TestMessagesRoutes(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t, nil)

	if rr := serve(svc, http.MethodGet, "/messages/next", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("empty inbox: expected 204, got %d", rr.Code)
	}

	if err := svc.IngestStream(context.Background(), "unit", strings.NewReader("<msg>hi</msg>")); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	rr := serve(svc, http.MethodGet, "/messages/pending", "")
	var pending map[string]int
	if err := json.Unmarshal(rr.Body.Bytes(), &pending); err != nil || pending["pending"] != 1 {
		t.Fatalf("pending body=%s err=%v", rr.Body.String(), err)
	}

	rr = serve(svc, http.MethodGet, "/messages/next", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var env Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Body != "<msg>hi</msg>" || env.Source != "unit" || env.ID != 1 {
		t.Fatalf("unexpected envelope: %#v", env)
	}
	if svc.Pending() != 0 {
		t.Fatalf("next must pop the envelope")
	}
}

func TestExtractRoute(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t, nil)
	doc := `<m><v a='1'>x&amp;y</v><v>z</v></m>`

	rr := serve(svc, http.MethodPost, "/extract?tag=v&decode=true", doc)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var body struct {
		Tag        string              `json:"tag"`
		Values     []string            `json:"values"`
		Properties []map[string]string `json:"properties"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Values) != 2 || body.Values[0] != "x&y" || body.Values[1] != "z" {
		t.Fatalf("values=%q", body.Values)
	}
	if len(body.Properties) != 2 || body.Properties[0]["a"] != "1" || len(body.Properties[1]) != 0 {
		t.Fatalf("properties=%v", body.Properties)
	}

	rr = serve(svc, http.MethodPost, "/extract?tag=v", doc)
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body.Values[0] != "x&amp;y" {
		t.Fatalf("raw values=%q err=%v", body.Values, err)
	}

	if rr := serve(svc, http.MethodPost, "/extract", doc); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing tag: expected 400, got %d", rr.Code)
	}
	if rr := serve(svc, http.MethodPost, "/extract?tag=v&decode=maybe", doc); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad decode flag: expected 400, got %d", rr.Code)
	}
}

func TestEncodeDecodeRoutes(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t, nil)

	rr := serve(svc, http.MethodPost, "/encode?non_ascii=true", "<é>")
	if rr.Code != http.StatusOK || rr.Body.String() != "&lt;&#xe9;&gt;" {
		t.Fatalf("encode status=%d body=%q", rr.Code, rr.Body.String())
	}

	rr = serve(svc, http.MethodPost, "/encode", "<é>")
	if rr.Body.String() != "&lt;é&gt;" {
		t.Fatalf("encode without flag body=%q", rr.Body.String())
	}

	rr = serve(svc, http.MethodPost, "/decode", "&lt;&#xe9;&gt;")
	if rr.Code != http.StatusOK || rr.Body.String() != "<é>" {
		t.Fatalf("decode status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestMetricsRoute(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t, nil)
	rr := serve(svc, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestAdminTokenGuardsMessageRoutes(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t, func(cfg *Config) {
		cfg.AdminToken = "s3cret"
	})

	if rr := serve(svc, http.MethodGet, "/health", ""); rr.Code != http.StatusOK {
		t.Fatalf("health must stay open, got %d", rr.Code)
	}
	if rr := serve(svc, http.MethodGet, "/messages/pending", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/messages/pending", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rr := httptest.NewRecorder()
	svc.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}
}

func TestMessagesSnapshotAndClear(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t, nil)
	if err := svc.IngestStream(context.Background(), "unit", strings.NewReader("<msg>1</msg><msg>2</msg>")); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	rr := serve(svc, http.MethodGet, "/messages", "")
	var list struct {
		Messages []Envelope `json:"messages"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Messages) != 2 || list.Messages[0].Body != "<msg>1</msg>" {
		t.Fatalf("unexpected list: %#v", list.Messages)
	}
	if svc.Pending() != 2 {
		t.Fatalf("listing must not consume, pending=%d", svc.Pending())
	}

	rr = serve(svc, http.MethodDelete, "/messages", "")
	var cleared map[string]int
	if err := json.Unmarshal(rr.Body.Bytes(), &cleared); err != nil || cleared["cleared"] != 2 {
		t.Fatalf("clear body=%s err=%v", rr.Body.String(), err)
	}
	if svc.Pending() != 0 {
		t.Fatalf("inbox not cleared, pending=%d", svc.Pending())
	}
}

func TestCORSPreflightAllowsAuthorization(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t, func(cfg *Config) {
		cfg.AdminToken = "s3cret"
		cfg.CorsOrigins = []string{"http://dash.local"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/messages/next", nil)
	req.Header.Set("Origin", "http://dash.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rr := httptest.NewRecorder()
	svc.Router().ServeHTTP(rr, req)

	if rr.Code >= 300 {
		t.Fatalf("preflight rejected: status=%d", rr.Code)
	}
	allowed := strings.ToLower(rr.Header().Get("Access-Control-Allow-Headers"))
	if !strings.Contains(allowed, "authorization") {
		t.Fatalf("allow-headers=%q lacks authorization", allowed)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://dash.local" {
		t.Fatalf("allow-origin=%q", got)
	}
}
