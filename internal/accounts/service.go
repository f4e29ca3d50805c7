package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	store Store
	cost  int
	// dummyHash is compared against for unknown users so both failure paths
	// take the same time.
	dummyHash []byte
}

// NewService hashes with the given bcrypt cost. Costs outside bcrypt's
// accepted range fall back to bcrypt.DefaultCost.
func NewService(store Store, cost int) (*Service, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("sentiscope"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare password hashing: %w", err)
	}
	return &Service{store: store, cost: cost, dummyHash: dummy}, nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (s *Service) Register(ctx context.Context, username, password string) (Account, error) {
	username = normalizeUsername(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return Account{}, ErrInvalidAccount
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return Account{}, fmt.Errorf("%w: password longer than 72 bytes", ErrInvalidAccount)
		}
		return Account{}, fmt.Errorf("hash password: %w", err)
	}

	account := Account{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Create(ctx, account); err != nil {
		if !errors.Is(err, ErrAccountExists) {
			slog.Error("[Accounts] Failed to store account",
				slog.String("username", username),
				slog.String("error", err.Error()))
		}
		return Account{}, err
	}

	slog.Info("[Accounts] Registered account", slog.String("username", username))
	return account, nil
}

// Authenticate returns ErrInvalidCredentials for both unknown users and wrong
// passwords.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Account, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return Account{}, ErrInvalidCredentials
	}

	account, err := s.store.Get(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return Account{}, ErrInvalidCredentials
		}
		slog.Error("[Accounts] Failed to load account",
			slog.String("username", username),
			slog.String("error", err.Error()))
		return Account{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		slog.Warn("[Accounts] Rejected credentials", slog.String("username", username))
		return Account{}, ErrInvalidCredentials
	}
	return account, nil
}
