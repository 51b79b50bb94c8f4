package adminhttp

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestHandler() (*Handler, *bool) {
	paused := false
	h := &Handler{
		Pause:  func() { paused = true },
		Resume: func() { paused = false },
		Paused: func() bool { return paused },
		ForceClose: func(mint, reason string) error {
			if mint == "MintFail" {
				return errors.New("close failed")
			}
			return nil
		},
		ExportTrades: func(w io.Writer, limit int) (int, error) {
			_, _ = w.Write([]byte("id,mint\n1,MintA\n"))
			return 1, nil
		},
		HeldPositions: func() []PositionView {
			return []PositionView{{Mint: "MintA", SlotType: "scout", EntryPrice: 1, LastPrice: 1.1}}
		},
	}
	return h, &paused
}

func TestHealth_ReportsPausedState(t *testing.T) {
	h, _ := newTestHandler()
	server := NewServer("0.0.0.0", 0, h)

	req, _ := http.NewRequest("GET", "/health", nil)
	resp, err := server.app.Test(req, 1000)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, false, body["paused"])
}

func TestPauseResume_TogglesState(t *testing.T) {
	h, paused := newTestHandler()
	server := NewServer("0.0.0.0", 0, h)

	req, _ := http.NewRequest("POST", "/pause", nil)
	resp, err := server.app.Test(req, 1000)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.True(t, *paused)

	req, _ = http.NewRequest("POST", "/resume", nil)
	resp, err = server.app.Test(req, 1000)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.False(t, *paused)
}

func TestPositions_ReturnsHeldSnapshot(t *testing.T) {
	h, _ := newTestHandler()
	server := NewServer("0.0.0.0", 0, h)

	req, _ := http.NewRequest("GET", "/positions", nil)
	resp, err := server.app.Test(req, 1000)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var positions []PositionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&positions))
	require.Len(t, positions, 1)
	require.Equal(t, "MintA", positions[0].Mint)
}

func TestForceClose_Success(t *testing.T) {
	h, _ := newTestHandler()
	server := NewServer("0.0.0.0", 0, h)

	req, _ := http.NewRequest("POST", "/close/MintA?reason=manual_close", nil)
	resp, err := server.app.Test(req, 1000)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
}

func TestForceClose_PropagatesError(t *testing.T) {
	h, _ := newTestHandler()
	server := NewServer("0.0.0.0", 0, h)

	req, _ := http.NewRequest("POST", "/close/MintFail", nil)
	resp, err := server.app.Test(req, 1000)
	require.NoError(t, err)
	require.Equal(t, 500, resp.StatusCode)
}

func TestExportTrades_StreamsCSV(t *testing.T) {
	h, _ := newTestHandler()
	server := NewServer("0.0.0.0", 0, h)

	req, _ := http.NewRequest("GET", "/export/trades?limit=10", nil)
	resp, err := server.app.Test(req, 1000)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
}
