package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/latchkeyhq/latchkey-core/internal/actuator"
	"github.com/latchkeyhq/latchkey-core/internal/auditlog"
	"github.com/latchkeyhq/latchkey-core/internal/engine"
	"github.com/latchkeyhq/latchkey-core/internal/infrastructure/config"
	"github.com/latchkeyhq/latchkey-core/internal/infrastructure/logging"
	"github.com/latchkeyhq/latchkey-core/internal/mode"
	"github.com/latchkeyhq/latchkey-core/internal/registry"
)

// stubController is a hand-written Controller for handler tests. Each field
// overrides the corresponding method; unset methods succeed with zero values.
type stubController struct {
	status   engine.Status
	cards    []registry.Card
	events   []auditlog.Entry
	enrolled []registry.Card
	modes    []mode.Mode
	scans    []string

	enrollErr   error
	unenrollErr error
	markErr     error
	channelErr  error
}

func (c *stubController) Status(context.Context) (engine.Status, error) { return c.status, nil }
func (c *stubController) Cards(context.Context) ([]registry.Card, error) {
	return c.cards, nil
}
func (c *stubController) Events(context.Context) ([]auditlog.Entry, error) {
	return c.events, nil
}

func (c *stubController) RequestMode(_ context.Context, target mode.Mode) error {
	c.modes = append(c.modes, target)
	return nil
}

func (c *stubController) SetMark(_ context.Context, channel int, _ bool) error {
	return c.markErr
}

func (c *stubController) SetChannel(_ context.Context, channel int, _ bool) error {
	return c.channelErr
}

func (c *stubController) Scan(_ context.Context, uid string) error {
	c.scans = append(c.scans, uid)
	return nil
}

func (c *stubController) Enroll(_ context.Context, uid string, mask registry.Mask) error {
	if c.enrollErr != nil {
		return c.enrollErr
	}
	c.enrolled = append(c.enrolled, registry.Card{UID: uid, Mask: mask})
	return nil
}

func (c *stubController) Unenroll(_ context.Context, uid string) error {
	return c.unenrollErr
}

// testServer creates a Server wired to a stub controller.
func testServer(t *testing.T, ctrl *stubController) *Server {
	t.Helper()

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:     log,
		Controller: ctrl,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	srv.hub = NewHub(srv.wsCfg, log)
	go srv.hub.Run(context.Background())

	return srv
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv := testServer(t, &stubController{})
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodGet, "/api/v1/health", "")

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestHealth_ContentType(t *testing.T) {
	srv := testServer(t, &stubController{})
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodGet, "/api/v1/health", "")

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	srv := testServer(t, &stubController{})
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodGet, "/api/v1/health", "")

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv := testServer(t, &stubController{})
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv := testServer(t, &stubController{})
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestNotFound(t *testing.T) {
	srv := testServer(t, &stubController{})
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodGet, "/api/v1/nonexistent", "")

	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Status Endpoint Tests ─────────────────────────────────────────

func TestStatus(t *testing.T) {
	expires := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	srv := testServer(t, &stubController{
		status: engine.Status{
			Mode:        "enroll",
			ModeExpires: &expires,
			Cards:       3,
			Capacity:    64,
			Channels:    []actuator.State{{Channel: 0}, {Channel: 1}},
			Marks:       []bool{true, false},
		},
	})
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodGet, "/api/v1/status", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp["mode"] != "enroll" {
		t.Errorf("mode = %v, want enroll", resp["mode"])
	}
	if int(resp["cards"].(float64)) != 3 {
		t.Errorf("cards = %v, want 3", resp["cards"])
	}
	if int(resp["capacity"].(float64)) != 64 {
		t.Errorf("capacity = %v, want 64", resp["capacity"])
	}
}

// ─── Card Administration Tests ─────────────────────────────────────

func TestListCards_Empty(t *testing.T) {
	srv := testServer(t, &stubController{})
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodGet, "/api/v1/cards", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if int(resp["count"].(float64)) != 0 {
		t.Errorf("count = %v, want 0", resp["count"])
	}
	if resp["cards"] == nil {
		t.Error("cards should be an empty array, not null")
	}
}

func TestListCards(t *testing.T) {
	srv := testServer(t, &stubController{
		cards: []registry.Card{
			{UID: "04A1B2C3", Mask: 0b011},
			{UID: "DEADBEEF", Mask: 0b100},
		},
	})
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodGet, "/api/v1/cards", "")

	var resp struct {
		Cards []registry.Card `json:"cards"`
		Count int             `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Count != 2 {
		t.Errorf("count = %d, want 2", resp.Count)
	}
	if resp.Cards[0].UID != "04A1B2C3" {
		t.Errorf("first card = %q, want 04A1B2C3", resp.Cards[0].UID)
	}
}

func TestEnrollCard(t *testing.T) {
	ctrl := &stubController{}
	srv := testServer(t, ctrl)
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodPost, "/api/v1/cards", `{"uid": "04a1b2c3", "mask": 3}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	if len(ctrl.enrolled) != 1 {
		t.Fatalf("enrolled %d cards, want 1", len(ctrl.enrolled))
	}
	// Identifier is normalised before it reaches the controller.
	if ctrl.enrolled[0].UID != "04A1B2C3" {
		t.Errorf("enrolled uid = %q, want 04A1B2C3", ctrl.enrolled[0].UID)
	}
	if ctrl.enrolled[0].Mask != 0b011 {
		t.Errorf("enrolled mask = %#b, want 0b011", ctrl.enrolled[0].Mask)
	}
}

func TestEnrollCard_InvalidUID(t *testing.T) {
	ctrl := &stubController{}
	srv := testServer(t, ctrl)
	router := srv.buildRouter()

	tests := []struct {
		name string
		body string
	}{
		{"not hex", `{"uid": "not-hex!", "mask": 1}`},
		{"too short", `{"uid": "04A1", "mask": 1}`},
		{"odd length", `{"uid": "04A1B2C", "mask": 1}`},
		{"empty", `{"uid": "", "mask": 1}`},
		{"malformed json", `{"uid": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/api/v1/cards", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}

	if len(ctrl.enrolled) != 0 {
		t.Errorf("controller saw %d enrollments, want 0", len(ctrl.enrolled))
	}
}

func TestEnrollCard_RegistryFull(t *testing.T) {
	srv := testServer(t, &stubController{enrollErr: registry.ErrRegistryFull})
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodPost, "/api/v1/cards", `{"uid": "04A1B2C3", "mask": 1}`)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusConflict, w.Body.String())
	}

	var apiErr Error
	if err := json.Unmarshal(w.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if apiErr.Code != ErrCodeConflict {
		t.Errorf("code = %q, want %q", apiErr.Code, ErrCodeConflict)
	}
}

func TestUnenrollCard(t *testing.T) {
	srv := testServer(t, &stubController{})
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodDelete, "/api/v1/cards/04A1B2C3", "")

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestUnenrollCard_NotFound(t *testing.T) {
	srv := testServer(t, &stubController{unenrollErr: registry.ErrCardNotFound})
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodDelete, "/api/v1/cards/04A1B2C3", "")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Audit History Tests ───────────────────────────────────────────

func TestListEvents(t *testing.T) {
	srv := testServer(t, &stubController{
		events: []auditlog.Entry{
			{ID: "evt-2", Kind: auditlog.KindDenied, Subject: "DEADBEEF"},
			{ID: "evt-1", Kind: auditlog.KindGranted, Subject: "04A1B2C3", Mask: 0b01},
		},
	})
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodGet, "/api/v1/events", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp struct {
		Events []auditlog.Entry `json:"events"`
		Count  int              `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Count != 2 {
		t.Errorf("count = %d, want 2", resp.Count)
	}
	if resp.Events[0].Kind != auditlog.KindDenied {
		t.Errorf("first event kind = %q, want %q", resp.Events[0].Kind, auditlog.KindDenied)
	}
}

// ─── Mode and Mark Tests ───────────────────────────────────────────

func TestSetMode(t *testing.T) {
	ctrl := &stubController{}
	srv := testServer(t, ctrl)
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodPut, "/api/v1/mode", `{"mode": "enroll"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	if len(ctrl.modes) != 1 || ctrl.modes[0] != mode.Enroll {
		t.Errorf("controller saw modes %v, want [enroll]", ctrl.modes)
	}
}

func TestSetMode_Invalid(t *testing.T) {
	ctrl := &stubController{}
	srv := testServer(t, ctrl)
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodPut, "/api/v1/mode", `{"mode": "maintenance"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if len(ctrl.modes) != 0 {
		t.Errorf("controller saw modes %v, want none", ctrl.modes)
	}
}

func TestSetMark(t *testing.T) {
	srv := testServer(t, &stubController{})
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodPut, "/api/v1/marks/2", `{"selected": true}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestSetMark_UnknownChannel(t *testing.T) {
	srv := testServer(t, &stubController{markErr: actuator.ErrUnknownChannel})
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodPut, "/api/v1/marks/9", `{"selected": true}`)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestSetMark_BadChannel(t *testing.T) {
	srv := testServer(t, &stubController{})
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodPut, "/api/v1/marks/two", `{"selected": true}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── Channel Override Tests ────────────────────────────────────────

func TestSetChannel(t *testing.T) {
	srv := testServer(t, &stubController{})
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodPut, "/api/v1/channels/0", `{"on": true}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["on"] != true {
		t.Errorf("on = %v, want true", resp["on"])
	}
}

func TestSetChannel_UnknownChannel(t *testing.T) {
	srv := testServer(t, &stubController{channelErr: actuator.ErrUnknownChannel})
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodPut, "/api/v1/channels/9", `{"on": true}`)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestSetChannel_Failure(t *testing.T) {
	srv := testServer(t, &stubController{channelErr: errors.New("driver fault")})
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodPut, "/api/v1/channels/0", `{"on": true}`)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

// ─── Scan Injection Tests ──────────────────────────────────────────

func TestScan(t *testing.T) {
	ctrl := &stubController{}
	srv := testServer(t, ctrl)
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodPost, "/api/v1/scan", `{"uid": "  04a1b2c3  "}`)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusAccepted, w.Body.String())
	}

	if len(ctrl.scans) != 1 || ctrl.scans[0] != "04A1B2C3" {
		t.Errorf("controller saw scans %v, want [04A1B2C3]", ctrl.scans)
	}
}

func TestScan_InvalidUID(t *testing.T) {
	ctrl := &stubController{}
	srv := testServer(t, ctrl)
	router := srv.buildRouter()

	w := doJSON(t, router, http.MethodPost, "/api/v1/scan", `{"uid": "zz"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if len(ctrl.scans) != 0 {
		t.Errorf("controller saw scans %v, want none", ctrl.scans)
	}
}
