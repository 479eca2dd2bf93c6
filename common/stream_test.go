package common

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reward-bot/types_utils"
)

type wsFrame struct {
	kind int
	data string
}

// startLogServer serves frames to the first client and then closes the
// connection. Requests read from the client are sent on the returned channel.
func startLogServer(t *testing.T, frames []wsFrame, hold bool) (string, <-chan []byte) {
	t.Helper()
	received := make(chan []byte, 4)
	upgrader := websocket.Upgrader{}
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		go func() {
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				received <- msg
			}
		}()

		for _, f := range frames {
			if err := conn.WriteMessage(f.kind, []byte(f.data)); err != nil {
				return
			}
		}
		if hold {
			<-release
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), received
}

func TestStreamClient_YieldsTextFramesInOrder(t *testing.T) {
	url, _ := startLogServer(t, []wsFrame{
		{websocket.TextMessage, `{"signature":"A"}`},
		{websocket.BinaryMessage, `ignored`},
		{websocket.TextMessage, `{"signature":"B"}`},
	}, false)

	ctx := context.Background()
	c, err := DialStream(ctx, url, StreamOptions{})
	require.NoError(t, err)
	defer c.Close()

	first, err := c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"signature":"A"}`, string(first))

	second, err := c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"signature":"B"}`, string(second))

	_, err = c.Next(ctx)
	assert.ErrorIs(t, err, ErrTransport)

	_, err = c.Next(ctx)
	assert.ErrorIs(t, err, ErrTransport, "not restartable")
}

func TestStreamClient_SendsSubscribe(t *testing.T) {
	url, received := startLogServer(t, nil, true)

	c, err := DialStream(context.Background(), url, StreamOptions{
		Subscribe:  true,
		Mentions:   []string{"11111111111111111111111111111111"},
		Commitment: CommitmentFinalized,
	})
	require.NoError(t, err)
	defer c.Close()

	select {
	case msg := <-received:
		var req types_utils.SubscribeRequest
		require.NoError(t, json.Unmarshal(msg, &req))
		assert.Equal(t, "logsSubscribe", req.Method)
		assert.Equal(t, "2.0", req.JSONRPC)
		require.Len(t, req.Params, 2)
		assert.Equal(t, map[string]any{"mentions": []any{"11111111111111111111111111111111"}}, req.Params[0])
		assert.Equal(t, map[string]any{"commitment": "finalized"}, req.Params[1])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for logsSubscribe")
	}
}

func TestStreamClient_ContextCancelUnblocksNext(t *testing.T) {
	url, _ := startLogServer(t, nil, true)

	c, err := DialStream(context.Background(), url, StreamOptions{})
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err = c.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDialStream_ConnectError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	_, err := DialStream(context.Background(), url, StreamOptions{})
	assert.ErrorIs(t, err, ErrConnect)
}

func TestNewLogsSubscribe_AllFilter(t *testing.T) {
	req := types_utils.NewLogsSubscribe(7, nil, CommitmentConfirmed)
	assert.Equal(t, uint64(7), req.ID)
	assert.Equal(t, "all", req.Params[0])
}
