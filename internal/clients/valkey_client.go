package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spacesedan/sentiscope/config"
	"github.com/valkey-io/valkey-go"
)

const (
	VALKEY_RETRIES     = 3
	VALKEY_RETRY_DELAY = 250 * time.Millisecond
)

type ValkeyClient struct {
	Client valkey.Client
	cfg    config.ValkeyConfig
	mu     sync.RWMutex
}

func valkeyOptions(cfg config.ValkeyConfig) valkey.ClientOption {
	opts := valkey.ClientOption{
		InitAddress: []string{
			cfg.InitAddress,
		},
		Password:         cfg.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}

	if cfg.TLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}
	return opts
}

func dialValkey(cfg config.ValkeyConfig) (valkey.Client, error) {
	client, err := valkey.NewClient(valkeyOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}
	return client, nil
}

// NewValkeyClient connects and pings the configured server.
func NewValkeyClient(cfg config.ValkeyConfig) (*ValkeyClient, error) {
	client, err := dialValkey(cfg)
	if err != nil {
		return nil, err
	}

	slog.Info("[ValkeyClient] Successfully connected to valkey", slog.String("address", cfg.InitAddress))
	return &ValkeyClient{Client: client, cfg: cfg}, nil
}

func (vc *ValkeyClient) client() valkey.Client {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return vc.Client
}

func (vc *ValkeyClient) recreateClient() {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	slog.Warn("[ValkeyClient] Attempting to recreate Valkey client...")
	client, err := dialValkey(vc.cfg)
	if err != nil {
		slog.Error("[ValkeyClient] Recreate failed", slog.String("error", err.Error()))
		return
	}
	vc.Client.Close()
	vc.Client = client
	slog.Info("[ValkeyClient] Successfully reconnected to valkey")
}

func (vc *ValkeyClient) Close() {
	vc.client().Close()
}

func (vc *ValkeyClient) Ping(ctx context.Context) error {
	c := vc.client()
	return c.Do(ctx, c.B().Ping().Build()).Error()
}

// Get returns the value stored at key. A missing key is reported as
// found == false with a nil error.
func (vc *ValkeyClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c := vc.client()
	res := vc.DoWithRetry(ctx, c.B().Get().Key(key).Build(), VALKEY_RETRIES)
	if err := res.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	b, err := res.AsBytes()
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set stores value at key with the given ttl. A ttl under one second stores
// the key without expiry.
func (vc *ValkeyClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c := vc.client()
	var cmd valkey.Completed
	if secs := int64(ttl / time.Second); secs > 0 {
		cmd = c.B().Set().Key(key).Value(valkey.BinaryString(value)).ExSeconds(secs).Build()
	} else {
		cmd = c.B().Set().Key(key).Value(valkey.BinaryString(value)).Build()
	}
	return vc.DoWithRetry(ctx, cmd, VALKEY_RETRIES).Error()
}

// DoWithRetry retries transient failures. Nil replies are returned as is.
func (vc *ValkeyClient) DoWithRetry(ctx context.Context, completed valkey.Completed, retries int) valkey.ValkeyResult {
	var result valkey.ValkeyResult
	retryValkey(ctx, retries, VALKEY_RETRY_DELAY, func() error {
		result = vc.client().Do(ctx, completed.Pin())
		return result.Error()
	}, vc.recreateClient)
	return result
}

// retryValkey calls attempt until it succeeds, returns a nil reply, runs out
// of retries or ctx is done. The wait between attempts stops early on ctx.
func retryValkey(ctx context.Context, retries int, delay time.Duration, attempt func() error, reconnect func()) {
	for i := 0; i < retries; i++ {
		err := attempt()
		if err == nil || valkey.IsValkeyNil(err) || ctx.Err() != nil {
			return
		}

		slog.Warn("[ValkeyClient] Do failed",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
		if isConnectionError(err) {
			reconnect()
		}

		if i == retries-1 {
			return
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return
		}
	}
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
