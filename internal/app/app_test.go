package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drillagg/internal/config"
	"drillagg/internal/workbook/workbooktest"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Server.DataRoot = t.TempDir()
	cfg.Server.RateLimit.Enabled = false
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Telemetry.MetricExporter = "none"
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestApplicationServesAndStops(t *testing.T) {
	cfg := testConfig(t)
	header := []any{"Hole Number", "Depth"}
	workbooktest.Write(t, cfg.Server.DataRoot, "A.xlsx", "A",
		workbooktest.HoleLog("2024-01-01", header, []any{"H1", 12.3}))

	ctx := context.Background()
	a, err := NewApplication(ctx, cfg, testLogger())
	require.NoError(t, err)
	require.NoError(t, a.Start(ctx))

	base := "http://" + a.Addr()

	resp, err := http.Get(base + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Subscribe to run events before aggregating
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+a.Addr()+"/ws/runs", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, welcome, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(welcome), "connection")

	resp, err = http.Post(base+"/api/aggregate", "application/json", strings.NewReader(`{"input_dir":"."}`))
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["report"].(map[string]any)["records_written"])

	var types []string
	for len(types) == 0 || types[len(types)-1] != "run:completed" {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		types = append(types, msg.Type)
	}
	assert.Equal(t, []string{"run:started", "run:document", "run:completed"}, types)

	require.NoError(t, a.Stop(ctx))

	_, err = http.Get(base + "/api/health")
	assert.Error(t, err)
}

// freePort reserves an ephemeral port and releases it for the server
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestApplicationRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = freePort(t)

	a, err := NewApplication(context.Background(), cfg, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.Server.Addr() + "/api/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestApplicationRejectsBadAddress(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Host = "256.0.0.1"

	a, err := NewApplication(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	assert.Error(t, a.Start(context.Background()))
}
