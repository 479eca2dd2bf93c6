package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestPublishersImplementPublisher(t *testing.T) {
	var _ Publisher = (*NoopPublisher)(nil)
	var _ Publisher = (*NATSPublisher)(nil)
	var _ Publisher = (*KafkaPublisher)(nil)
}

func TestNoopPublisher(t *testing.T) {
	pub := &NoopPublisher{}
	assert.NoError(t, pub.Publish(context.Background(), TopicDetection, Detection{}))
	assert.NoError(t, pub.Close())
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	require.NoError(t, err)
	defer pub.Close()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicRewardSent, ch)
	require.NoError(t, err)
	defer sub.Unsubscribe() //nolint:errcheck
	require.NoError(t, nc.Flush())

	event := RewardSent{EventID: "ev-1", Signature: "sig", Recipient: "dest", Lamports: 500_000_000}
	require.NoError(t, pub.Publish(context.Background(), TopicRewardSent, event))
	require.NoError(t, pub.conn.Flush())

	select {
	case msg := <-ch:
		var got RewardSent
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, event, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_ConnectFailure(t *testing.T) {
	_, err := NewNATSPublisher("nats://127.0.0.1:1", nats.MaxReconnects(0), nats.Timeout(200*time.Millisecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to NATS")
}

func TestNATSPublisher_UnmarshalableEvent(t *testing.T) {
	url := startTestNATS(t)
	pub, err := NewNATSPublisher(url)
	require.NoError(t, err)
	defer pub.Close()

	err = pub.Publish(context.Background(), TopicDetection, map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshaling event")
}

func TestKafkaPublisher_UnmarshalableEvent(t *testing.T) {
	pub := NewKafkaPublisher([]string{"127.0.0.1:9092"}, "rewards")
	defer pub.Close()

	err := pub.Publish(context.Background(), TopicDetection, func() {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshaling event")
}

func TestNewKafkaPublisher_FlushesEachEvent(t *testing.T) {
	pub := NewKafkaPublisher([]string{"127.0.0.1:9092"}, "rewardbot-events")
	t.Cleanup(func() { _ = pub.Close() })

	w := pub.writer
	assert.Equal(t, "rewardbot-events", w.Topic)
	assert.False(t, w.Async)
	assert.Equal(t, 1, w.BatchSize)
	assert.LessOrEqual(t, w.BatchTimeout, 10*time.Millisecond)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
}
