package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type senderFunc func(ctx context.Context, userID string, n Notice) error

func (f senderFunc) Send(ctx context.Context, userID string, n Notice) error {
	return f(ctx, userID, n)
}

func TestFromSender_SetsLevelAndTime(t *testing.T) {
	var got []Notice
	n := FromSender(senderFunc(func(_ context.Context, _ string, n Notice) error {
		got = append(got, n)
		return nil
	}), nil)

	ctx := context.Background()
	n.Success(ctx, "u1", Notice{Title: "已保存"})
	n.Warn(ctx, "u1", Notice{Title: "快照失败"})
	n.Error(ctx, "u1", Notice{Title: "保存失败"})

	require.Len(t, got, 3)
	assert.Equal(t, LevelSuccess, got[0].Level)
	assert.Equal(t, LevelWarning, got[1].Level)
	assert.Equal(t, LevelError, got[2].Level)
	assert.False(t, got[0].At.IsZero())
}

func TestFromSender_LogsSendFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	n := FromSender(senderFunc(func(context.Context, string, Notice) error {
		return errors.New("socket closed")
	}), zap.New(core))

	n.Error(context.Background(), "u1", Notice{Title: "保存失败"})

	entries := logs.FilterMessage("发送保存通知失败").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "u1", entries[0].ContextMap()["user_id"])
}

func TestLogSender_LevelMapping(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := NewLogSender(zap.New(core))
	ctx := context.Background()

	require.NoError(t, s.Send(ctx, "u1", Notice{Level: LevelSuccess}))
	require.NoError(t, s.Send(ctx, "u1", Notice{Level: LevelWarning}))
	require.NoError(t, s.Send(ctx, "u1", Notice{Level: LevelError}))

	all := logs.All()
	require.Len(t, all, 3)
	assert.Equal(t, zap.InfoLevel, all[0].Level)
	assert.Equal(t, zap.WarnLevel, all[1].Level)
	assert.Equal(t, zap.ErrorLevel, all[2].Level)
}

func TestMultiSender_ReturnsFirstError(t *testing.T) {
	calls := 0
	first := errors.New("first")
	m := MultiSender{
		senderFunc(func(context.Context, string, Notice) error { calls++; return first }),
		nil,
		senderFunc(func(context.Context, string, Notice) error { calls++; return errors.New("second") }),
	}
	err := m.Send(context.Background(), "u1", Notice{})
	assert.ErrorIs(t, err, first)
	assert.Equal(t, 2, calls)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()
	r.Success(ctx, "u1", Notice{Title: "a"})
	r.Warn(ctx, "u2", Notice{Title: "b"})
	r.Warn(ctx, "u2", Notice{Title: "c"})

	assert.Len(t, r.All(), 3)
	warnings := r.ByLevel(LevelWarning)
	require.Len(t, warnings, 2)
	assert.Equal(t, "c", warnings[1].Title)
	assert.Empty(t, r.ByLevel(LevelError))
}

func TestMemoryOfflineStore_LimitAndDrain(t *testing.T) {
	s := NewMemoryOfflineStore(2)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "u1", []byte("1")))
	require.NoError(t, s.Append(ctx, "u1", []byte("2")))
	require.NoError(t, s.Append(ctx, "u1", []byte("3")))

	got, err := s.Drain(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("3"), []byte("2")}, got)

	got, err = s.Drain(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHubSender_StoresOfflineWithoutConnection(t *testing.T) {
	store := NewMemoryOfflineStore(10)
	hub := NewWebSocketHub(WithOfflineStore(store), WithKeepAliveInterval(0), WithHubLogger(zap.NewNop()))
	s := NewHubSender(hub)

	require.NoError(t, s.Send(context.Background(), "u1", Notice{Level: LevelWarning, Title: "快照失败", PromptID: "p1"}))
	require.NoError(t, s.Send(context.Background(), "", Notice{}))

	queued, err := store.Drain(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, queued, 1)

	var msg struct {
		Type   string `json:"type"`
		Notice Notice `json:"notice"`
	}
	require.NoError(t, json.Unmarshal(queued[0], &msg))
	assert.Equal(t, "prompt.save", msg.Type)
	assert.Equal(t, "p1", msg.Notice.PromptID)
}

// dialHub 启动一个把连接注册到 hub 的测试服务并拨号
func dialHub(t *testing.T, hub *WebSocketHub, userID string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(userID, conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestWebSocketHub_ReplaysOfflineOldestFirst(t *testing.T) {
	hub := NewWebSocketHub(WithKeepAliveInterval(0), WithHubLogger(zap.NewNop()))
	defer hub.Close()

	require.NoError(t, hub.SendToUser("u1", []byte("first")))
	require.NoError(t, hub.SendToUser("u1", []byte("second")))

	conn := dialHub(t, hub, "u1")
	assert.Equal(t, "first", readMessage(t, conn))
	assert.Equal(t, "second", readMessage(t, conn))
}

func TestWebSocketHub_SendToConnectedUser(t *testing.T) {
	hub := NewWebSocketHub(WithKeepAliveInterval(0), WithHubLogger(zap.NewNop()))
	defer hub.Close()

	conn := dialHub(t, hub, "u1")
	require.Eventually(t, func() bool { return hub.ConnectedCount("u1") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.SendToUser("u1", []byte("live")))
	assert.Equal(t, "live", readMessage(t, conn))

	hub.Unregister("u1", nil)
	assert.Equal(t, 1, hub.ConnectedCount("u1"))
}
