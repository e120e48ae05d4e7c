package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNotifier(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	LogNotifier{}.Notify(context.Background(), Notification{Level: LevelError, Title: "Error", Description: "Failed to purchase"})
	LogNotifier{}.Notify(context.Background(), Notification{Level: LevelSuccess, Title: "Thank you!", TxID: "0xabc"})

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, log.ErrorLevel, entries[0].Level)
	assert.Equal(t, "Failed to purchase", entries[0].Data["description"])
	assert.Equal(t, log.InfoLevel, entries[1].Level)
	assert.Equal(t, "0xabc", entries[1].Data["txid"])
}

func TestMulti(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	var called int
	m := Multi{a, nil, b, NotifierFunc(func(context.Context, Notification) { called++ })}

	m.Notify(context.Background(), Notification{Level: LevelInfo, Title: "Transaction not submitted"})

	assert.Len(t, a.Notifications(), 1)
	assert.Len(t, b.Notifications(), 1)
	assert.Equal(t, 1, called)
}

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func TestHub_Notify(t *testing.T) {
	h := NewHub(nil, nil)
	conn := dialHub(t, h)

	h.Notify(context.Background(), Notification{Level: LevelSuccess, Title: "Withdraw requested", TxID: "0x01"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string       `json:"type"`
		Data Notification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, TypeNotification, msg.Type)
	assert.Equal(t, "Withdraw requested", msg.Data.Title)
	assert.Equal(t, "0x01", msg.Data.TxID)
}

func TestHub_PublishCountsClients(t *testing.T) {
	h := NewHub(nil, nil)
	assert.Zero(t, h.Publish(TypeSignRequest, map[string]string{"id": "1"}))

	dialHub(t, h)
	assert.Equal(t, 1, h.Publish(TypeSignRequest, map[string]string{"id": "1"}))
}

func TestHub_ClientDisconnect(t *testing.T) {
	h := NewHub(nil, nil)
	conn := dialHub(t, h)

	conn.Close()
	require.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_Close(t *testing.T) {
	h := NewHub(nil, nil)
	conn := dialHub(t, h)

	h.Close()
	assert.Zero(t, h.Clients())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_OriginCheck(t *testing.T) {
	h := NewHub([]string{"https://fund.example"}, nil)
	server := httptest.NewServer(h)
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://fund.example"}})
	require.NoError(t, err)
	conn.Close()
}
