package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/modremote/spawn-relay/catalog"
	"github.com/modremote/spawn-relay/relay/registry"
	"github.com/modremote/spawn-relay/relay/service"
	"github.com/modremote/spawn-relay/relay/session"
	"github.com/modremote/spawn-relay/transport/websocket"
)

const testCatalog = `[{"id":"pumpkin","name":"Pumpkin"},{"id":"melon","name":"Melon"}]`

type testEnv struct {
	server   *httptest.Server
	registry *registry.Registry
	service  service.RelayService
	dataPath string
}

// newTestEnv wires real stores, registry, hub, and service behind an
// httptest server, the same way main does.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	dataPath := filepath.Join(dir, "info.json")
	if err := os.WriteFile(dataPath, []byte(testCatalog), 0644); err != nil {
		t.Fatalf("Failed to write catalog: %v", err)
	}

	catalogStore, err := catalog.NewStore(dataPath)
	if err != nil {
		t.Fatalf("Failed to create catalog store: %v", err)
	}

	sessions := session.NewStore(0)
	reg := registry.New()
	hub := websocket.NewHub(reg, catalogStore)
	relaySvc := service.NewRelayService(sessions, reg, catalogStore)

	apiServer := NewServer(relaySvc, hub, "")
	server := httptest.NewServer(apiServer)
	t.Cleanup(server.Close)

	return &testEnv{
		server:   server,
		registry: reg,
		service:  relaySvc,
		dataPath: dataPath,
	}
}

func (e *testEnv) startSession(t *testing.T) string {
	t.Helper()

	resp, err := http.Post(e.server.URL+"/session/start", "application/json", nil)
	if err != nil {
		t.Fatalf("session/start request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session/start returned %d", resp.StatusCode)
	}

	var body struct {
		UUID string `json:"UUID"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode session/start response: %v", err)
	}
	if body.UUID == "" {
		t.Fatal("session/start returned an empty token")
	}
	return body.UUID
}

func (e *testEnv) endSession(t *testing.T, token string) *http.Response {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{"UUID": token})
	resp, err := http.Post(e.server.URL+"/session/end", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("session/end request failed: %v", err)
	}
	return resp
}

func (e *testEnv) dialWS(t *testing.T, token string) *gws.Conn {
	t.Helper()

	url := strings.Replace(e.server.URL, "http", "ws", 1) + "/ws?UUID=" + token
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (e *testEnv) waitForConnections(t *testing.T, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.registry.Count() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Registry never reached %d connections (have %d)", want, e.registry.Count())
}

func decodeOutcome(t *testing.T, resp *http.Response) (bool, string) {
	t.Helper()
	defer resp.Body.Close()

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode outcome body: %v", err)
	}
	return body.Success, body.Message
}

func TestStartThenEndSession(t *testing.T) {
	env := newTestEnv(t)

	token := env.startSession(t)

	resp := env.endSession(t, token)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("First end should return 200, got %d", resp.StatusCode)
	}
	success, _ := decodeOutcome(t, resp)
	if !success {
		t.Error("First end should report success")
	}

	resp = env.endSession(t, token)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Second end should return 404, got %d", resp.StatusCode)
	}
	success, message := decodeOutcome(t, resp)
	if success {
		t.Error("Second end should report failure")
	}
	if message != "Session not found" {
		t.Errorf("Unexpected message: %q", message)
	}
}

func TestEndUnknownSession(t *testing.T) {
	env := newTestEnv(t)

	resp := env.endSession(t, "never-issued")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSpawnWithInvalidToken(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/never-issued/spawn?item=pumpkin")
	if err != nil {
		t.Fatalf("Spawn request failed: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", resp.StatusCode)
	}
	success, message := decodeOutcome(t, resp)
	if success || message != "Invalid or expired session" {
		t.Errorf("Unexpected outcome: %v %q", success, message)
	}
}

func TestSpawnWithoutConnection(t *testing.T) {
	env := newTestEnv(t)
	token := env.startSession(t)

	resp, err := http.Get(env.server.URL + "/" + token + "/spawn?item=pumpkin")
	if err != nil {
		t.Fatalf("Spawn request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
	success, message := decodeOutcome(t, resp)
	if success || message != "No active WebSocket connection for this session." {
		t.Errorf("Unexpected outcome: %v %q", success, message)
	}
}

func TestSpawnMissingItem(t *testing.T) {
	env := newTestEnv(t)
	token := env.startSession(t)

	resp, err := http.Get(env.server.URL + "/" + token + "/spawn")
	if err != nil {
		t.Fatalf("Spawn request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSpawnEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	token := env.startSession(t)

	conn := env.dialWS(t, token)
	env.waitForConnections(t, 1)

	// Initial push carries the current catalog.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read initial push: %v", err)
	}

	var update service.UpdateMessage
	if err := json.Unmarshal(message, &update); err != nil {
		t.Fatalf("Failed to decode initial push: %v", err)
	}
	if update.Type != "update" || string(update.Items) != testCatalog {
		t.Errorf("Unexpected initial push: %s", message)
	}

	// Spawn command is relayed verbatim to the connection.
	resp, err := http.Get(env.server.URL + "/" + token + "/spawn?item=pumpkin&quantity=3")
	if err != nil {
		t.Fatalf("Spawn request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	success, spawnMsg := decodeOutcome(t, resp)
	if !success {
		t.Error("Spawn should succeed")
	}
	if spawnMsg != "Item pumpkin (x3) spawned." {
		t.Errorf("Unexpected spawn message: %q", spawnMsg)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read relayed command: %v", err)
	}

	var cmd service.SpawnCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		t.Fatalf("Failed to decode relayed command: %v", err)
	}
	if cmd.Action != "spawnItem" || cmd.ItemID != "pumpkin" || cmd.Quantity != 3 {
		t.Errorf("Relayed command mismatch: %+v", cmd)
	}

	// After the peer disconnects, the relay reports no connection.
	conn.Close()
	env.waitForConnections(t, 0)

	resp, err = http.Get(env.server.URL + "/" + token + "/spawn?item=pumpkin")
	if err != nil {
		t.Fatalf("Spawn request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after disconnect, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSpawnQuantityDefaultsToOne(t *testing.T) {
	env := newTestEnv(t)
	token := env.startSession(t)

	conn := env.dialWS(t, token)
	env.waitForConnections(t, 1)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	conn.ReadMessage() // initial push

	for _, query := range []string{"", "&quantity=abc", "&quantity=-5"} {
		resp, err := http.Get(env.server.URL + "/" + token + "/spawn?item=melon" + query)
		if err != nil {
			t.Fatalf("Spawn request failed: %v", err)
		}
		_, message := decodeOutcome(t, resp)
		if message != "Item melon (x1) spawned." {
			t.Errorf("Quantity %q should default to 1, got message %q", query, message)
		}

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Failed to read relayed command: %v", err)
		}
		var cmd service.SpawnCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			t.Fatalf("Failed to decode relayed command: %v", err)
		}
		if cmd.Quantity != 1 {
			t.Errorf("Expected quantity 1 on the wire, got %d", cmd.Quantity)
		}
	}
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)

	url := strings.Replace(env.server.URL, "http", "ws", 1) + "/ws"
	_, resp, err := gws.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Dial without a token should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403 handshake rejection, got %+v", resp)
	}
}

func TestWebSocketRejectsUnknownToken(t *testing.T) {
	env := newTestEnv(t)

	url := strings.Replace(env.server.URL, "http", "ws", 1) + "/ws?UUID=never-issued"
	_, resp, err := gws.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Dial with an unknown token should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403 handshake rejection, got %+v", resp)
	}
}

func TestGetItems(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/items", "/info.json"} {
		resp, err := http.Get(env.server.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s returned %d", path, resp.StatusCode)
		}

		var doc json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
			t.Fatalf("GET %s returned invalid JSON: %v", path, err)
		}
		resp.Body.Close()

		if string(doc) != testCatalog {
			t.Errorf("GET %s returned %s", path, doc)
		}
	}
}

func TestGetItemsReadFailure(t *testing.T) {
	env := newTestEnv(t)

	if err := os.Remove(env.dataPath); err != nil {
		t.Fatalf("Failed to remove catalog: %v", err)
	}

	resp, err := http.Get(env.server.URL + "/api/items")
	if err != nil {
		t.Fatalf("GET /api/items failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", resp.StatusCode)
	}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	if body.Error != "Failed to read item list." {
		t.Errorf("Unexpected error message: %q", body.Error)
	}
}

func TestBroadcastReachesAllConnections(t *testing.T) {
	env := newTestEnv(t)

	conns := make([]*gws.Conn, 3)
	for i := range conns {
		token := env.startSession(t)
		conns[i] = env.dialWS(t, token)
	}
	env.waitForConnections(t, 3)

	for _, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		conn.ReadMessage() // initial push
	}

	updated := json.RawMessage(`[{"id":"starfruit"}]`)
	delivered := env.service.BroadcastCatalog(context.Background(), updated)
	if delivered != 3 {
		t.Errorf("Expected 3 deliveries, got %d", delivered)
	}

	for i, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Connection %d failed to read broadcast: %v", i, err)
		}
		var update service.UpdateMessage
		if err := json.Unmarshal(raw, &update); err != nil {
			t.Fatalf("Failed to decode broadcast: %v", err)
		}
		if string(update.Items) != string(updated) {
			t.Errorf("Broadcast items mismatch on connection %d: %s", i, update.Items)
		}
	}
}

func TestListSessions(t *testing.T) {
	env := newTestEnv(t)

	token := env.startSession(t)
	env.startSession(t)
	env.dialWS(t, token)
	env.waitForConnections(t, 1)

	resp, err := http.Get(env.server.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("GET /api/sessions failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Count    int                    `json:"count"`
		Sessions []*service.SessionInfo `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode sessions: %v", err)
	}
	if body.Count != 2 {
		t.Errorf("Expected 2 sessions, got %d", body.Count)
	}

	connected := 0
	for _, sess := range body.Sessions {
		if sess.Connected {
			connected++
			if sess.Token != token {
				t.Errorf("Wrong session reported as connected: %s", sess.Token)
			}
		}
	}
	if connected != 1 {
		t.Errorf("Expected exactly 1 connected session, got %d", connected)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}
