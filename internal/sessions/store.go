// Package sessions tracks initialized payment sessions in Redis so the
// dashboard can show payments that are awaiting gateway confirmation.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"garage-api/internal/core"
)

const (
	keyPrefix  = "garage:paysession:"
	defaultTTL = 30 * time.Minute
)

// Store implements core.SessionStore. Entries expire on their own; nothing in
// the payment flow depends on them being present.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client, ttl: defaultTTL}
}

type record struct {
	Session core.PaymentSession  `json:"session"`
	Meta    core.PaymentMetadata `json:"meta"`
}

func (s *Store) Put(ctx context.Context, session *core.PaymentSession, meta core.PaymentMetadata) error {
	payload, err := json.Marshal(record{Session: *session, Meta: meta})
	if err != nil {
		return fmt.Errorf("failed to encode payment session: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+session.Reference, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store payment session: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, reference string) (*core.PaymentSession, error) {
	raw, err := s.client.Get(ctx, keyPrefix+reference).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.NotFoundf("payment session %s not found", reference)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment session: %w", err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode payment session: %w", err)
	}
	return &rec.Session, nil
}

func (s *Store) Delete(ctx context.Context, reference string) error {
	if err := s.client.Del(ctx, keyPrefix+reference).Err(); err != nil {
		return fmt.Errorf("failed to delete payment session: %w", err)
	}
	return nil
}
