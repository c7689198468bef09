package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/nerrad567/iobridge/internal/bridge"
	"github.com/nerrad567/iobridge/internal/infrastructure/config"
	"github.com/nerrad567/iobridge/internal/infrastructure/logging"
	"github.com/nerrad567/iobridge/internal/peripheral"
)

var testWSConfig = config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}

type fakeConn bool

func (f fakeConn) IsConnected() bool { return bool(f) }

// testServer creates a Server around a real bridge whose bus records
// writes. SSD1306 displays set up on such a bus without any reads.
func testServer(t *testing.T) (*Server, *bridge.Bridge) {
	t.Helper()

	registry := peripheral.NewRegistry(&i2ctest.Record{}, peripheral.DefaultCatalog())
	publish := bridge.PublisherFunc(func(context.Context, bridge.Batch) error { return nil })
	b, err := bridge.New(bridge.Config{ListenAddr: "127.0.0.1:0"}, registry, publish)
	if err != nil {
		t.Fatalf("bridge.New() error = %v", err)
	}
	t.Cleanup(func() { b.Close() })

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS:      testWSConfig,
		Logger:  logging.Discard(),
		Bridge:  b,
		MQTT:    fakeConn(true),
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Hub().Run(ctx)

	return srv, b
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return v
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Deps{Bridge: &bridge.Bridge{}}); err == nil {
		t.Error("New() without logger succeeded")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without bridge succeeded")
	}
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/health", "")

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	resp := decode[map[string]any](t, w)
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Errorf("health = %v", resp)
	}
}

func TestRequestID(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	w := do(t, router, http.MethodGet, "/api/v1/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/peripherals", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want http://localhost:3000", got)
	}
}

func TestCreatePeripheral(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantAddr   string
	}{
		{"hex string", `{"name":"oled","type":"ssd1306","address":"0x3c"}`, http.StatusCreated, "0x3c"},
		{"bare hex", `{"name":"oled","type":"SSD1306","address":"3d"}`, http.StatusCreated, "0x3d"},
		{"number", `{"name":"oled","type":"ssd1306","address":60}`, http.StatusCreated, "0x3c"},
		{"reserved name", `{"name":"poll","type":"ssd1306","address":"0x3c"}`, http.StatusUnprocessableEntity, ""},
		{"invalid name", `{"name":"a/b","type":"ssd1306","address":"0x3c"}`, http.StatusUnprocessableEntity, ""},
		{"unknown type", `{"name":"oled","type":"bme280","address":"0x76"}`, http.StatusUnprocessableEntity, ""},
		{"address out of range", `{"name":"oled","type":"ssd1306","address":"0x78"}`, http.StatusUnprocessableEntity, ""},
		{"missing address", `{"name":"oled","type":"ssd1306"}`, http.StatusUnprocessableEntity, ""},
		{"invalid JSON", `{"name":`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, b := testServer(t)
			w := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/peripherals", tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusCreated {
				if n := b.Registry().Len(); n != 0 {
					t.Errorf("registry has %d peripherals after rejected create", n)
				}
				return
			}
			resp := decode[PeripheralResponse](t, w)
			want := PeripheralResponse{Name: "oled", Type: "ssd1306", Address: tt.wantAddr, State: "ready"}
			if resp != want {
				t.Errorf("response = %+v, want %+v", resp, want)
			}
		})
	}
}

func TestListAndGetPeripherals(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	list := decode[struct {
		Peripherals []PeripheralResponse `json:"peripherals"`
		Count       int                  `json:"count"`
	}](t, do(t, router, http.MethodGet, "/api/v1/peripherals", ""))
	if list.Count != 0 || len(list.Peripherals) != 0 {
		t.Fatalf("initial list = %+v, want empty", list)
	}

	for _, body := range []string{
		`{"name":"left","type":"ssd1306","address":"0x3c"}`,
		`{"name":"right","type":"ssd1306","address":"0x3d"}`,
	} {
		if w := do(t, router, http.MethodPost, "/api/v1/peripherals", body); w.Code != http.StatusCreated {
			t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
		}
	}

	list = decode[struct {
		Peripherals []PeripheralResponse `json:"peripherals"`
		Count       int                  `json:"count"`
	}](t, do(t, router, http.MethodGet, "/api/v1/peripherals", ""))
	if list.Count != 2 || list.Peripherals[0].Name != "left" || list.Peripherals[1].Name != "right" {
		t.Errorf("list = %+v, want left then right", list)
	}

	w := do(t, router, http.MethodGet, "/api/v1/peripherals/right", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if got := decode[PeripheralResponse](t, w); got.Address != "0x3d" {
		t.Errorf("get = %+v", got)
	}

	if w := do(t, router, http.MethodGet, "/api/v1/peripherals/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("get missing status = %d, want 404", w.Code)
	}
}

func TestListTypes(t *testing.T) {
	srv, _ := testServer(t)
	resp := decode[map[string][]string](t, do(t, srv.buildRouter(), http.MethodGet, "/api/v1/peripherals/types", ""))
	want := []string{"ads1015", "ads1115", "lis3dh", "mpr121", "ssd1306"}
	if strings.Join(resp["types"], ",") != strings.Join(want, ",") {
		t.Errorf("types = %v, want %v", resp["types"], want)
	}
}

func TestDeletePeripheral(t *testing.T) {
	srv, b := testServer(t)
	router := srv.buildRouter()

	do(t, router, http.MethodPost, "/api/v1/peripherals", `{"name":"oled","type":"ssd1306","address":"0x3c"}`)
	drv, ok := b.Registry().Get("oled")
	if !ok {
		t.Fatal("oled not created")
	}

	if w := do(t, router, http.MethodDelete, "/api/v1/peripherals/oled", ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", w.Code)
	}
	if drv.State() != peripheral.StateClosed {
		t.Errorf("driver state after delete = %v, want closed", drv.State())
	}
	if w := do(t, router, http.MethodDelete, "/api/v1/peripherals/oled", ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestCommand(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	do(t, router, http.MethodPost, "/api/v1/peripherals", `{"name":"oled","type":"ssd1306","address":"0x3c"}`)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"draw pixel", "/api/v1/peripherals/oled/command", `{"command":"pixel","args":[1,2]}`, http.StatusOK},
		{"clear without args", "/api/v1/peripherals/oled/command", `{"command":"clear"}`, http.StatusOK},
		{"unknown command", "/api/v1/peripherals/oled/command", `{"command":"scroll"}`, http.StatusUnprocessableEntity},
		{"bad argument", "/api/v1/peripherals/oled/command", `{"command":"contrast","args":[300]}`, http.StatusUnprocessableEntity},
		{"missing command", "/api/v1/peripherals/oled/command", `{"args":[1]}`, http.StatusBadRequest},
		{"unknown peripheral", "/api/v1/peripherals/nobody/command", `{"command":"clear"}`, http.StatusNotFound},
		{"reserved key", "/api/v1/peripherals/poll/command", `{"command":"x"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestPoll(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantRate   float64
	}{
		{"set rate", `{"rate_hz":20}`, http.StatusOK, 20},
		{"clamped to minimum", `{"rate_hz":0.01}`, http.StatusOK, bridge.MinRateHz},
		{"missing rate", `{}`, http.StatusBadRequest, bridge.DefaultRateHz},
		{"not a number", `{"rate_hz":"fast"}`, http.StatusBadRequest, bridge.DefaultRateHz},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, b := testServer(t)
			w := do(t, srv.buildRouter(), http.MethodPut, "/api/v1/poll", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := b.Poller().Rate(); got != tt.wantRate {
				t.Errorf("Rate() = %v, want %v", got, tt.wantRate)
			}
		})
	}
}

func TestGetPoll(t *testing.T) {
	srv, _ := testServer(t)
	resp := decode[PollResponse](t, do(t, srv.buildRouter(), http.MethodGet, "/api/v1/poll", ""))
	if resp.RateHz != bridge.DefaultRateHz || resp.IntervalMS != 100 {
		t.Errorf("poll = %+v, want 10 Hz / 100 ms", resp)
	}
}

func TestMetrics(t *testing.T) {
	srv, b := testServer(t)
	router := srv.buildRouter()
	do(t, router, http.MethodPost, "/api/v1/peripherals", `{"name":"oled","type":"ssd1306","address":"0x3c"}`)
	if err := b.Poller().Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	m := decode[SystemMetrics](t, do(t, router, http.MethodGet, "/api/v1/metrics", ""))
	if m.Bridge.Peripherals != 1 || m.Bridge.Ticks != 1 || m.Bridge.LastBatchSize != 1 {
		t.Errorf("bridge metrics = %+v", m.Bridge)
	}
	if m.Bridge.LastTick == "" {
		t.Error("last_tick not set after a tick")
	}
	if m.MQTT == nil || !m.MQTT.Connected {
		t.Errorf("mqtt metrics = %+v, want connected", m.MQTT)
	}
	if m.InfluxDB != nil {
		t.Errorf("influxdb metrics = %+v, want omitted", m.InfluxDB)
	}
	if m.Runtime.Goroutines == 0 {
		t.Error("goroutines = 0")
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := testServer(t)
	if w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/nonexistent", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── WebSocket Hub Tests ───────────────────────────────────────────

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := NewHub(testWSConfig, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	subscribed := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelBatch: {}},
	}
	other := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"status": {}},
	}
	hub.Register(subscribed)
	hub.Register(other)

	batch := bridge.Batch{Entries: []bridge.Entry{{Name: "adc1", Values: []float64{1, 2}}}}
	if err := hub.Publish(ctx, batch); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-subscribed.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.Type != WSTypeEvent || wsMsg.EventType != ChannelBatch {
			t.Errorf("message = %+v, want batch event", wsMsg)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}

	select {
	case <-other.send:
		t.Error("unsubscribed client received a batch")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub(testWSConfig, logging.Discard())

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}
	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestWebSocket_StreamsBatches(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	sub := WSMessage{Type: WSTypeSubscribe, ID: "1", Payload: WSSubscribePayload{Channels: []string{ChannelBatch}}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	var ack WSMessage
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("reading subscribe ack: %v", err)
	}
	if ack.Type != WSTypeResponse || ack.ID != "1" {
		t.Fatalf("ack = %+v", ack)
	}

	batch := bridge.Batch{
		Time:    time.Unix(1700000000, 0).UTC(),
		Entries: []bridge.Entry{{Name: "touch1", Values: []float64{12, 400}}},
	}
	srv.Hub().Publish(context.Background(), batch)

	var event struct {
		Type      string       `json:"type"`
		EventType string       `json:"event_type"`
		Payload   bridge.Batch `json:"payload"`
	}
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("reading batch event: %v", err)
	}
	if event.EventType != ChannelBatch || len(event.Payload.Entries) != 1 {
		t.Fatalf("event = %+v", event)
	}
	got := event.Payload.Entries[0]
	if got.Name != "touch1" || len(got.Values) != 2 || got.Values[1] != 400 {
		t.Errorf("entry = %+v", got)
	}
}

func TestServer_StartClose(t *testing.T) {
	srv, _ := testServer(t)
	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start succeeded")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestServer_CloseWaitsForHub(t *testing.T) {
	srv, _ := testServer(t)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := srv.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if n := srv.Hub().ClientCount(); n != 0 {
		t.Errorf("ClientCount() after Close = %d, want 0", n)
	}
}
