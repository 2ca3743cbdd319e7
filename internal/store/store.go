// Package store persists snapshots of options, records and the last exported
// CSV in a flat key space. Backends only guarantee single-call atomicity.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bookmark-cataloger/internal/models"
)

const (
	KeyOptions          = "options"
	KeyRecords          = "records"
	KeyLastCSV          = "lastCsv"
	KeyLastCSVUpdatedAt = "lastCsvUpdatedAt"
)

// Snapshot is a partial view of the key space. Missing keys are absent, not
// null.
type Snapshot map[string]json.RawMessage

// Store is the persistence collaborator.
type Store interface {
	Get(ctx context.Context, keys ...string) (Snapshot, error)
	Set(ctx context.Context, snap Snapshot) error
	Close() error
}

// LoadOptions returns the persisted options layered over defaults. found is
// false when nothing was stored yet.
func LoadOptions(ctx context.Context, s Store, defaults models.ScanOptions) (opts models.ScanOptions, found bool, err error) {
	snap, err := s.Get(ctx, KeyOptions)
	if err != nil {
		return defaults, false, fmt.Errorf("load options: %w", err)
	}
	raw, ok := snap[KeyOptions]
	if !ok {
		return defaults, false, nil
	}
	opts = defaults
	if err := json.Unmarshal(raw, &opts); err != nil {
		return defaults, false, fmt.Errorf("decode options: %w", err)
	}
	return opts, true, nil
}

func SaveOptions(ctx context.Context, s Store, opts models.ScanOptions) error {
	raw, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	if err := s.Set(ctx, Snapshot{KeyOptions: raw}); err != nil {
		return fmt.Errorf("save options: %w", err)
	}
	return nil
}

// LoadRecords returns the persisted records, or an empty map.
func LoadRecords(ctx context.Context, s Store) (models.RecordsMap, error) {
	snap, err := s.Get(ctx, KeyRecords)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	records := models.RecordsMap{}
	if raw, ok := snap[KeyRecords]; ok {
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		if records == nil {
			records = models.RecordsMap{}
		}
	}
	return records, nil
}

func SaveRecords(ctx context.Context, s Store, records models.RecordsMap) error {
	if records == nil {
		records = models.RecordsMap{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := s.Set(ctx, Snapshot{KeyRecords: raw}); err != nil {
		return fmt.Errorf("save records: %w", err)
	}
	return nil
}

// SaveCSV stores the last exported CSV and when it was produced.
func SaveCSV(ctx context.Context, s Store, csv string, at time.Time) error {
	rawCSV, err := json.Marshal(csv)
	if err != nil {
		return err
	}
	rawAt, err := json.Marshal(at.UnixMilli())
	if err != nil {
		return err
	}
	if err := s.Set(ctx, Snapshot{KeyLastCSV: rawCSV, KeyLastCSVUpdatedAt: rawAt}); err != nil {
		return fmt.Errorf("save csv: %w", err)
	}
	return nil
}

// LoadCSV returns the last exported CSV. A zero time means none was saved.
func LoadCSV(ctx context.Context, s Store) (string, time.Time, error) {
	snap, err := s.Get(ctx, KeyLastCSV, KeyLastCSVUpdatedAt)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("load csv: %w", err)
	}
	var csv string
	var ms int64
	if raw, ok := snap[KeyLastCSV]; ok {
		if err := json.Unmarshal(raw, &csv); err != nil {
			return "", time.Time{}, fmt.Errorf("decode csv: %w", err)
		}
	}
	if raw, ok := snap[KeyLastCSVUpdatedAt]; ok {
		if err := json.Unmarshal(raw, &ms); err != nil {
			return "", time.Time{}, fmt.Errorf("decode csv timestamp: %w", err)
		}
	}
	if ms == 0 {
		return csv, time.Time{}, nil
	}
	return csv, time.UnixMilli(ms), nil
}
