package notifications

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/areawatch/areawatch/server/alerts"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func testAlert() *alerts.Alert {
	return &alerts.Alert{
		ID:             "alert_1740000000000",
		Message:        "2 person(s) in loading bay",
		Level:          alerts.LevelWarning,
		Time:           time.UnixMilli(1740000000000),
		ZoneID:         "loading-bay",
		DetectionCount: 2,
	}
}

func TestWebhookNotify(t *testing.T) {
	received := map[string]any{}
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(logs.NewTestingLog(t), srv.URL, "secret")
	require.NoError(t, n.Notify(testAlert()))
	require.Equal(t, "Bearer secret", gotAuth)
	require.Equal(t, "alert_1740000000000", received["id"])
	require.Equal(t, "warning", received["level"])
	require.Equal(t, "loading-bay", received["zoneId"])
	require.Equal(t, float64(2), received["detectionCount"])
}

func TestWebhookRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(logs.NewTestingLog(t), srv.URL, "")
	err := n.Notify(testAlert())
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
}

type stubNotifier struct {
	count int
	err   error
}

func (s *stubNotifier) Notify(alert *alerts.Alert) error {
	s.count++
	return s.err
}

func TestFanOut(t *testing.T) {
	bad := &stubNotifier{err: errors.New("down")}
	good := &stubNotifier{}
	f := &FanOut{Children: []alerts.Notifier{bad, good}}
	err := f.Notify(testAlert())
	require.ErrorIs(t, err, bad.err)
	require.Equal(t, 1, bad.count)
	require.Equal(t, 1, good.count)
}
