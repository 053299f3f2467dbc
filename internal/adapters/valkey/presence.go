package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/cembilgin/placepulse/internal/core/domain"
)

// PresenceStore implements ports.PresenceStore on Valkey.
//
// Layout:
//
//	presence:place:{venueID}  hash, field userID -> entered-at unix millis
//	presence:status:{userID}  JSON-encoded domain.OnlineStatus
//
// No TTLs are set on purpose: expiry would race the reconciler, which owns
// staleness decisions.
type PresenceStore struct {
	client valkey.Client
}

// NewPresenceStore creates a presence store over an existing client.
func NewPresenceStore(client valkey.Client) *PresenceStore {
	return &PresenceStore{client: client}
}

func placeKey(venueID string) string { return "presence:place:" + venueID }
func statusKey(userID string) string { return "presence:status:" + userID }

// SetEntry records that a user entered a venue. Re-setting overwrites the
// entry time, which is what a re-confirmation wants.
func (s *PresenceStore) SetEntry(ctx context.Context, venueID, userID string, enteredAt time.Time) error {
	cmd := s.client.Do(ctx, s.client.B().Hset().
		Key(placeKey(venueID)).
		FieldValue().
		FieldValue(userID, strconv.FormatInt(enteredAt.UnixMilli(), 10)).
		Build())
	if cmd.Error() != nil {
		return fmt.Errorf("hset presence entry: %w", cmd.Error())
	}
	return nil
}

// DeleteEntry removes a user from a venue. Deleting an absent field is a
// no-op, so concurrent prune and checkout cannot conflict.
func (s *PresenceStore) DeleteEntry(ctx context.Context, venueID, userID string) error {
	cmd := s.client.Do(ctx, s.client.B().Hdel().Key(placeKey(venueID)).Field(userID).Build())
	if cmd.Error() != nil {
		return fmt.Errorf("hdel presence entry: %w", cmd.Error())
	}
	return nil
}

// ListEntries returns all entries for a venue. Hash iteration order is
// unspecified; callers sort.
func (s *PresenceStore) ListEntries(ctx context.Context, venueID string) ([]domain.PresenceEntry, error) {
	cmd := s.client.Do(ctx, s.client.B().Hgetall().Key(placeKey(venueID)).Build())
	m, err := cmd.AsStrMap()
	if err != nil {
		return nil, fmt.Errorf("hgetall presence entries: %w", err)
	}

	entries := make([]domain.PresenceEntry, 0, len(m))
	for userID, raw := range m {
		millis, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			// A corrupt field is unreadable forever; surface it as very old
			// so the reconciler prunes it.
			millis = 0
		}
		entries = append(entries, domain.PresenceEntry{
			VenueID:   venueID,
			UserID:    userID,
			EnteredAt: time.UnixMilli(millis),
		})
	}
	return entries, nil
}

// SetStatus writes a user's online status document.
func (s *PresenceStore) SetStatus(ctx context.Context, st *domain.OnlineStatus) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	cmd := s.client.Do(ctx, s.client.B().Set().Key(statusKey(st.UserID)).Value(string(data)).Build())
	if cmd.Error() != nil {
		return fmt.Errorf("set status: %w", cmd.Error())
	}
	return nil
}

// GetStatus returns a user's status, (nil, nil) when none is recorded.
func (s *PresenceStore) GetStatus(ctx context.Context, userID string) (*domain.OnlineStatus, error) {
	cmd := s.client.Do(ctx, s.client.B().Get().Key(statusKey(userID)).Build())
	if err := cmd.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get status: %w", err)
	}
	data, err := cmd.AsBytes()
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}
	var st domain.OnlineStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal status: %w", err)
	}
	return &st, nil
}

// ClearStatus drops a user's status document.
func (s *PresenceStore) ClearStatus(ctx context.Context, userID string) error {
	cmd := s.client.Do(ctx, s.client.B().Del().Key(statusKey(userID)).Build())
	if cmd.Error() != nil {
		return fmt.Errorf("del status: %w", cmd.Error())
	}
	return nil
}

// ListStatuses scans every recorded status for the offline sweeper.
func (s *PresenceStore) ListStatuses(ctx context.Context) ([]domain.OnlineStatus, error) {
	var (
		statuses []domain.OnlineStatus
		cursor   uint64
	)
	for {
		cmd := s.client.Do(ctx, s.client.B().Scan().Cursor(cursor).
			Match("presence:status:*").Count(100).Build())
		entry, err := cmd.AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("scan statuses: %w", err)
		}

		for _, key := range entry.Elements {
			got := s.client.Do(ctx, s.client.B().Get().Key(key).Build())
			if err := got.Error(); err != nil {
				if valkey.IsValkeyNil(err) {
					continue // deleted between scan and read
				}
				return nil, fmt.Errorf("get status %s: %w", key, err)
			}
			data, err := got.AsBytes()
			if err != nil {
				return nil, fmt.Errorf("read status %s: %w", key, err)
			}
			var st domain.OnlineStatus
			if err := json.Unmarshal(data, &st); err != nil {
				continue // skip corrupt documents
			}
			statuses = append(statuses, st)
		}

		cursor = entry.Cursor
		if cursor == 0 {
			return statuses, nil
		}
	}
}
