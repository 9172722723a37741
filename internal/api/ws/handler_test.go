package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/events"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/journal"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/infrastructure/monitoring"
)

func newFeedServer(t *testing.T, hub *events.Hub, metrics *monitoring.Metrics) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/stream", NewHandler(hub, metrics, nil).HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	welcome := next(t, conn)
	require.Equal(t, "system", welcome.Type)
	return conn
}

func next(t *testing.T, conn *websocket.Conn) message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestFeedStreamsRecords(t *testing.T) {
	hub := events.NewHub(journal.New(100, 100), nil, nil)
	t.Cleanup(hub.Close)
	metrics := monitoring.NewMetrics()
	conn := dial(t, newFeedServer(t, hub, metrics), "")

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.WSConnections) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Record(journal.NewRecord("tab_1", "workflow:assert", map[string]any{"ok": true})))

	msg := next(t, conn)
	assert.Equal(t, events.NoticeEvent, msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, "tab_1", msg.Event.ContextID)
	assert.Equal(t, "workflow:assert", msg.Event.Event)
}

func TestFeedFiltersByContext(t *testing.T) {
	hub := events.NewHub(journal.New(100, 100), nil, nil)
	t.Cleanup(hub.Close)
	conn := dial(t, newFeedServer(t, hub, nil), "?contextId=tab_2")

	require.NoError(t, hub.Record(journal.NewRecord("tab_1", "other", nil)))
	require.NoError(t, hub.Record(journal.NewRecord("tab_2", "mine", nil)))

	msg := next(t, conn)
	require.NotNil(t, msg.Event)
	assert.Equal(t, "mine", msg.Event.Event)
}

func TestPingPong(t *testing.T) {
	hub := events.NewHub(journal.New(100, 100), nil, nil)
	t.Cleanup(hub.Close)
	conn := dial(t, newFeedServer(t, hub, nil), "")

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, "pong", next(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "chat"}))
	assert.Equal(t, "error", next(t, conn).Type)
}

func TestFilterKeep(t *testing.T) {
	event := events.Notice{Kind: events.NoticeEvent, Event: &journal.Record{ContextID: "tab_1"}}
	alert := events.Notice{Kind: events.NoticeAlert, Alert: &journal.Alert{ContextID: "tab_2"}}

	tests := []struct {
		name   string
		filter filter
		notice events.Notice
		want   bool
	}{
		{name: "no filter", filter: filter{}, notice: event, want: true},
		{name: "matching context", filter: filter{contextID: "tab_1"}, notice: event, want: true},
		{name: "other context", filter: filter{contextID: "tab_1"}, notice: alert, want: false},
		{name: "kind match", filter: filter{kind: events.NoticeAlert}, notice: alert, want: true},
		{name: "kind mismatch", filter: filter{kind: events.NoticeAlert}, notice: event, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.keep(tt.notice))
		})
	}
}
