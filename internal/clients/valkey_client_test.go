package clients

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valkey-io/valkey-go"
)

func TestRetryValkeyStopsWaitingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	start := time.Now()
	retryValkey(ctx, VALKEY_RETRIES, time.Minute, func() error {
		calls++
		cancel()
		return errors.New("LOADING server is loading the dataset")
	}, func() {})

	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRetryValkeyCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0

	time.AfterFunc(20*time.Millisecond, cancel)
	start := time.Now()
	retryValkey(ctx, VALKEY_RETRIES, time.Minute, func() error {
		calls++
		return errors.New("LOADING server is loading the dataset")
	}, func() {})

	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRetryValkeyRetries(t *testing.T) {
	tests := []struct {
		name       string
		errs       []error
		wantCalls  int
		wantReconn int
	}{
		{name: "success", errs: []error{nil}, wantCalls: 1},
		{name: "nil reply is final", errs: []error{valkey.Nil}, wantCalls: 1},
		{name: "recovers", errs: []error{errors.New("connection refused"), nil}, wantCalls: 2, wantReconn: 1},
		{name: "gives up", errs: []error{errors.New("EOF"), errors.New("EOF"), errors.New("EOF")}, wantCalls: 3, wantReconn: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls, reconns := 0, 0
			retryValkey(context.Background(), VALKEY_RETRIES, time.Millisecond, func() error {
				err := tt.errs[calls]
				calls++
				return err
			}, func() { reconns++ })

			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantReconn, reconns)
		})
	}
}
