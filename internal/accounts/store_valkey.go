package accounts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/valkey-io/valkey-go"
)

const VALKEY_ACCOUNTS_KEY = "accounts"

// ValkeyStore keeps every account as a JSON field of one valkey hash.
type ValkeyStore struct {
	client valkey.Client
	key    string
}

func NewValkeyStore(client valkey.Client) *ValkeyStore {
	return &ValkeyStore{client: client, key: VALKEY_ACCOUNTS_KEY}
}

func (s *ValkeyStore) Create(ctx context.Context, account Account) error {
	b, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}

	cmd := s.client.B().Hsetnx().Key(s.key).Field(account.Username).Value(string(b)).Build()
	created, err := s.client.Do(ctx, cmd).AsBool()
	if err != nil {
		return fmt.Errorf("store account: %w", err)
	}
	if !created {
		return ErrAccountExists
	}
	return nil
}

func (s *ValkeyStore) Get(ctx context.Context, username string) (Account, error) {
	cmd := s.client.B().Hget().Key(s.key).Field(username).Build()
	raw, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("load account: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(raw), &account); err != nil {
		return Account{}, fmt.Errorf("decode account: %w", err)
	}
	return account, nil
}
