package common

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"reward-bot/types_utils"
)

const subscribeRequestID = 1

type StreamOptions struct {
	// Subscribe sends a logsSubscribe request after connecting. Endpoints that
	// push records unprompted don't need it.
	Subscribe  bool
	Mentions   []string
	Commitment string
	Dialer     *websocket.Dialer
}

// StreamClient yields raw text frames from a websocket log stream. It does not
// reconnect: after the first read error the sequence is over.
type StreamClient struct {
	conn *websocket.Conn
	url  string
	done bool
}

func DialStream(ctx context.Context, url string, opts StreamOptions) (*StreamClient, error) {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnect, url, err)
	}

	if opts.Subscribe {
		req := types_utils.NewLogsSubscribe(subscribeRequestID, opts.Mentions, opts.Commitment)
		if err := conn.WriteJSON(req); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: sending logsSubscribe: %w", ErrConnect, err)
		}
	}

	return &StreamClient{conn: conn, url: url}, nil
}

// Next blocks until the next text frame arrives. Binary and control frames
// are skipped. Cancelling ctx unblocks a pending read and ends the stream.
func (c *StreamClient) Next(ctx context.Context) ([]byte, error) {
	if c.done {
		return nil, fmt.Errorf("%w: stream closed", ErrTransport)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			c.done = true
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		return data, nil
	}
}

func (c *StreamClient) URL() string {
	return c.url
}

func (c *StreamClient) Close() error {
	c.done = true
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.conn.Close()
}
