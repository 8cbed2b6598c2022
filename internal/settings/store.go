package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
)

// Settings store keys.
const (
	KeyWorkingHours = "working_hours"
	KeySystemPrompt = "system_prompt"
	KeySlotDuration = "slot_duration_minutes"
)

// Store is a key-value settings store backed by SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a new settings store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the raw value for a key, or ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, nil
}

// Set upserts the value for a key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at)
		 VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}

// WorkingHours returns the stored schedule, falling back to defaults when
// the key is missing or unparseable.
func (s *Store) WorkingHours(ctx context.Context) (WorkingHours, error) {
	raw, err := s.Get(ctx, KeyWorkingHours)
	if err != nil {
		if err == ErrKeyNotFound {
			return DefaultWorkingHours(), nil
		}
		return nil, err
	}

	var wh WorkingHours
	if err := json.Unmarshal([]byte(raw), &wh); err != nil {
		return DefaultWorkingHours(), nil
	}
	return wh, nil
}

// SetWorkingHours validates and stores a schedule.
func (s *Store) SetWorkingHours(ctx context.Context, wh WorkingHours) error {
	if err := wh.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(wh)
	if err != nil {
		return fmt.Errorf("encoding working hours: %w", err)
	}
	return s.Set(ctx, KeyWorkingHours, string(b))
}

// SystemPrompt returns the stored assistant prompt, or the default.
func (s *Store) SystemPrompt(ctx context.Context) (string, error) {
	prompt, err := s.Get(ctx, KeySystemPrompt)
	if err != nil {
		if err == ErrKeyNotFound {
			return DefaultSystemPrompt, nil
		}
		return "", err
	}
	return prompt, nil
}

// SetSystemPrompt stores the assistant prompt.
func (s *Store) SetSystemPrompt(ctx context.Context, prompt string) error {
	return s.Set(ctx, KeySystemPrompt, prompt)
}

// SlotDuration returns the booking grid step in minutes.
func (s *Store) SlotDuration(ctx context.Context) (int, error) {
	raw, err := s.Get(ctx, KeySlotDuration)
	if err != nil {
		if err == ErrKeyNotFound {
			return DefaultSlotDurationMinutes, nil
		}
		return 0, err
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return DefaultSlotDurationMinutes, nil
	}
	return minutes, nil
}

// SeedDefaults writes default values for any missing keys. Called once at
// startup.
func (s *Store) SeedDefaults(ctx context.Context, logger *slog.Logger) error {
	seeded := 0

	if _, err := s.Get(ctx, KeyWorkingHours); err == ErrKeyNotFound {
		if err := s.SetWorkingHours(ctx, DefaultWorkingHours()); err != nil {
			return err
		}
		seeded++
	}
	if _, err := s.Get(ctx, KeySystemPrompt); err == ErrKeyNotFound {
		if err := s.Set(ctx, KeySystemPrompt, DefaultSystemPrompt); err != nil {
			return err
		}
		seeded++
	}
	if _, err := s.Get(ctx, KeySlotDuration); err == ErrKeyNotFound {
		if err := s.Set(ctx, KeySlotDuration, strconv.Itoa(DefaultSlotDurationMinutes)); err != nil {
			return err
		}
		seeded++
	}

	if seeded > 0 {
		logger.Info("seeded default settings", "count", seeded)
	}
	return nil
}
