package tracking

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketTokens = []byte("tokens")
	bucketEvents = []byte("events")
)

// Token binds an opaque tracking token to a campaign and recipient.
type Token struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaign_id"`
	Recipient  string    `json:"recipient"`
	TargetURL  string    `json:"target_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Event is one recorded open or click. Events are append-only.
type Event struct {
	TokenID    string    `json:"token_id"`
	CampaignID string    `json:"campaign_id"`
	Recipient  string    `json:"recipient"`
	Kind       string    `json:"kind"` // open, click
	OccurredAt time.Time `json:"occurred_at"`
}

// Store persists tracking tokens and events in BoltDB.
type Store struct {
	db *bolt.DB
}

// NewStore opens (creating if needed) the tracking database.
func NewStore(path string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketTokens, bucketEvents} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveToken stores a token record.
func (s *Store) SaveToken(t *Token) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal token: %w", err)
		}
		return tx.Bucket(bucketTokens).Put([]byte(t.ID), data)
	})
}

// GetToken looks up a token by id. Returns nil if unknown.
func (s *Store) GetToken(id string) (*Token, error) {
	var t *Token
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTokens).Get([]byte(id))
		if data == nil {
			return nil
		}
		t = &Token{}
		return json.Unmarshal(data, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// RecordEvent appends one event, keyed by timestamp and token id.
func (s *Store) RecordEvent(e *Event) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		key := fmt.Sprintf("%020d:%s:%s", e.OccurredAt.UnixNano(), e.Kind, e.TokenID)
		return tx.Bucket(bucketEvents).Put([]byte(key), data)
	})
}

// EventsByCampaign returns all events for a campaign in recording order.
func (s *Store) EventsByCampaign(campaignID string) ([]Event, error) {
	events := []Event{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(k, v []byte) error {
			var e Event
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.CampaignID == campaignID {
				events = append(events, e)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}
