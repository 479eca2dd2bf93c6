package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Messages.Inc()
	m.Rewards.WithLabelValues(OutcomeSent).Inc()
	m.RewardDuration.Observe(1)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["rewardbot_messages_total"])
	assert.True(t, names["rewardbot_rewards_total"])
	assert.True(t, names["rewardbot_reward_duration_seconds"])
}

func TestNew_NilRegisterer(t *testing.T) {
	m := New(nil)
	m.Detections.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Detections))
}

func TestObserveReward(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveReward(OutcomeSent, 2*time.Second)
	m.ObserveReward(OutcomeFailed, time.Second)
	m.ObserveReward(OutcomeFailed, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rewards.WithLabelValues(OutcomeSent)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Rewards.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Rewards.WithLabelValues(OutcomeDryRun)))
}
