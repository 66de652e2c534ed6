package alertstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"alertcore/internal/config"
	"alertcore/internal/domain"
)

// NATSStore persists alert documents in a JetStream KV bucket.
// Params: NATS connection, JetStream context, and KV bucket handle.
// Returns: KV-backed alert store implementation.
type NATSStore struct {
	nc *nats.Conn
	js nats.JetStreamContext
	kv nats.KeyValue
}

// NewNATSStore opens or creates the alert KV bucket.
// Params: NATS settings from config.
// Returns: initialized NATS store or setup error.
func NewNATSStore(settings config.StoreConfig) (*NATSStore, error) {
	nc, err := nats.Connect(strings.Join(settings.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	kv, err := js.KeyValue(settings.Bucket)
	if err != nil {
		if !settings.AllowCreateBuckets {
			nc.Close()
			return nil, fmt.Errorf("open alert bucket %q: %w", settings.Bucket, err)
		}
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket: settings.Bucket,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create alert bucket %q: %w", settings.Bucket, err)
		}
	}

	return &NATSStore{nc: nc, js: js, kv: kv}, nil
}

// Get reads one alert document and its KV revision.
// Params: alert ID key.
// Returns: document, revision, or ErrNotFound.
func (s *NATSStore) Get(_ context.Context, alertID string) (domain.Alert, uint64, error) {
	entry, err := s.kv.Get(alertID)
	if err != nil {
		if err == nats.ErrKeyNotFound {
			return domain.Alert{}, 0, ErrNotFound
		}
		return domain.Alert{}, 0, fmt.Errorf("get alert: %w", err)
	}

	var alert domain.Alert
	if err := json.Unmarshal(entry.Value(), &alert); err != nil {
		return domain.Alert{}, 0, fmt.Errorf("decode alert: %w", err)
	}
	return alert, entry.Revision(), nil
}

// Put writes alert document unconditionally.
// Params: alert ID key and document payload.
// Returns: new KV revision.
func (s *NATSStore) Put(_ context.Context, alertID string, alert domain.Alert) (uint64, error) {
	body, err := json.Marshal(alert)
	if err != nil {
		return 0, fmt.Errorf("encode alert: %w", err)
	}
	rev, err := s.kv.Put(alertID, body)
	if err != nil {
		return 0, fmt.Errorf("put alert: %w", err)
	}
	return rev, nil
}

// Update updates alert document using expected revision CAS.
// Params: alert ID key, expected revision, and replacement payload.
// Returns: new KV revision or ErrConflict.
func (s *NATSStore) Update(_ context.Context, alertID string, expectedRevision uint64, alert domain.Alert) (uint64, error) {
	body, err := json.Marshal(alert)
	if err != nil {
		return 0, fmt.Errorf("encode alert: %w", err)
	}
	rev, err := s.kv.Update(alertID, body, expectedRevision)
	if err != nil {
		if errors.Is(err, nats.ErrKeyExists) || strings.Contains(strings.ToLower(err.Error()), "wrong last sequence") {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("update alert: %w", err)
	}
	return rev, nil
}

// List reads every alert document from the bucket.
// Params: ctx context for per-key reads.
// Returns: decoded alerts; keys deleted mid-scan are skipped.
func (s *NATSStore) List(ctx context.Context) ([]domain.Alert, error) {
	keys, err := s.kv.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list keys: %w", err)
	}

	alerts := make([]domain.Alert, 0, len(keys))
	for _, key := range keys {
		alert, _, err := s.Get(ctx, key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// Delete removes one alert document.
// Params: alert ID key.
// Returns: delete error; absent keys are not an error.
func (s *NATSStore) Delete(_ context.Context, alertID string) error {
	if err := s.kv.Delete(alertID); err != nil && err != nats.ErrKeyNotFound {
		return fmt.Errorf("delete alert: %w", err)
	}
	return nil
}

// Close closes underlying NATS connection.
// Params: none.
// Returns: nil after connection close.
func (s *NATSStore) Close() error {
	s.nc.Close()
	return nil
}
