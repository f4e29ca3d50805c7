package monitoring

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonitorCheckNow(t *testing.T) {
	m := NewMonitor(time.Hour)
	m.Register("valkey", func(context.Context) error { return nil })
	m.Register("twitter", func(context.Context) error { return errors.New("down") })
	m.Register("dynamodb", func(context.Context) error { return errors.New("down") })

	assert.True(t, m.Healthy())

	m.CheckNow(context.Background())

	assert.False(t, m.Healthy())
	assert.Equal(t, map[string]bool{"valkey": true, "twitter": false, "dynamodb": false}, m.Snapshot())
	assert.Equal(t, []string{"dynamodb", "twitter"}, m.Unhealthy())
}

func TestMonitorRecovers(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)

	m := NewMonitor(time.Millisecond)
	m.Register("kafka", func(context.Context) error {
		if failing.Load() {
			return errors.New("down")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	assert.Eventually(t, func() bool { return !m.Healthy() }, time.Second, time.Millisecond)
	failing.Store(false)
	assert.Eventually(t, m.Healthy, time.Second, time.Millisecond)
}

func TestMonitorBoundsSlowChecks(t *testing.T) {
	m := NewMonitor(time.Hour)
	m.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	m.CheckNow(ctx)
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, m.Healthy())
}
