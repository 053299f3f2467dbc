package valkey

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/valkey-io/valkey-go"

	"github.com/cembilgin/placepulse/internal/core/domain"
)

// StateStore implements ports.ConfirmationStateStore on Valkey.
//
// The whole ConfirmationState is one JSON document under one key, so the
// active venue and the last-confirm timestamp can never diverge: a write or
// clear hits both or neither.
type StateStore struct {
	client valkey.Client
}

// NewStateStore creates a confirmation-state store over an existing client.
func NewStateStore(client valkey.Client) *StateStore {
	return &StateStore{client: client}
}

func stateKey(deviceID string) string { return "session:confirm:" + deviceID }

// Load returns the device's confirmation state, (nil, nil) when absent.
func (s *StateStore) Load(ctx context.Context, deviceID string) (*domain.ConfirmationState, error) {
	cmd := s.client.Do(ctx, s.client.B().Get().Key(stateKey(deviceID)).Build())
	if err := cmd.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get confirmation state: %w", err)
	}
	data, err := cmd.AsBytes()
	if err != nil {
		return nil, fmt.Errorf("read confirmation state: %w", err)
	}
	var st domain.ConfirmationState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal confirmation state: %w", err)
	}
	return &st, nil
}

// Save writes the device's confirmation state atomically.
func (s *StateStore) Save(ctx context.Context, deviceID string, st *domain.ConfirmationState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal confirmation state: %w", err)
	}
	cmd := s.client.Do(ctx, s.client.B().Set().Key(stateKey(deviceID)).Value(string(data)).Build())
	if cmd.Error() != nil {
		return fmt.Errorf("set confirmation state: %w", cmd.Error())
	}
	return nil
}

// Clear drops the device's confirmation state. Clearing an absent key is a
// no-op.
func (s *StateStore) Clear(ctx context.Context, deviceID string) error {
	cmd := s.client.Do(ctx, s.client.B().Del().Key(stateKey(deviceID)).Build())
	if cmd.Error() != nil {
		return fmt.Errorf("del confirmation state: %w", cmd.Error())
	}
	return nil
}
