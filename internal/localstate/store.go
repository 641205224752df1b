// Package localstate persists the small amount of state the client keeps
// between runs: the session, a cached profile, the theme preference, the
// user's category list and the daily check-in history.
package localstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	KeySession = "session"
	KeyProfile = "profile"
	KeyTheme   = "theme"

	dayLayout = "2006-01-02"
)

// Theme values accepted by SetTheme.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

var (
	ErrNotFound     = errors.New("key not found")
	ErrInvalidTheme = errors.New("theme must be light or dark")
)

// Store is the SQLite-backed local state.
type Store struct {
	db      *sql.DB
	queries *Queries
}

// Open creates (if needed) and migrates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(path); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:      db,
		queries: newQueries(db),
	}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get returns the value stored under key or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.queries.GetValue(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) Put(ctx context.Context, key, value string) error {
	if err := s.queries.PutValue(ctx, key, value); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.queries.DeleteValue(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// ListCategories returns stored categories in insertion order.
func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	names, err := s.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return names, nil
}

// AddCategory stores name unless a case-insensitive duplicate exists.
// It reports whether a row was added.
func (s *Store) AddCategory(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, errors.New("empty category name")
	}
	n, err := s.queries.InsertCategory(ctx, name)
	if err != nil {
		return false, fmt.Errorf("add category %s: %w", name, err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Category added", "category", name)
	}
	return n > 0, nil
}

// Theme returns the stored theme, light when none was chosen.
func (s *Store) Theme(ctx context.Context) (string, error) {
	v, err := s.Get(ctx, KeyTheme)
	if errors.Is(err, ErrNotFound) {
		return ThemeLight, nil
	}
	if err != nil {
		return "", err
	}
	if v != ThemeDark {
		return ThemeLight, nil
	}
	return v, nil
}

func (s *Store) SetTheme(ctx context.Context, theme string) error {
	theme = strings.ToLower(strings.TrimSpace(theme))
	if theme != ThemeLight && theme != ThemeDark {
		return ErrInvalidTheme
	}
	return s.Put(ctx, KeyTheme, theme)
}

// Streak summarises the daily check-in history.
type Streak struct {
	Current        int       `json:"current"`
	Longest        int       `json:"longest"`
	Total          int       `json:"total"`
	LastCheckIn    time.Time `json:"lastCheckIn,omitempty"`
	CheckedInToday bool      `json:"checkedInToday"`
}

// CheckIn records a check-in for day's calendar date (idempotent) and
// returns the resulting streak.
func (s *Store) CheckIn(ctx context.Context, day time.Time) (Streak, error) {
	key := day.Format(dayLayout)
	n, err := s.queries.InsertCheckin(ctx, key)
	if err != nil {
		return Streak{}, fmt.Errorf("check in %s: %w", key, err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Daily check-in recorded", "day", key)
	}
	return s.Streak(ctx, day)
}

// Streak computes the streak as of today. A streak whose last check-in was
// yesterday is still current.
func (s *Store) Streak(ctx context.Context, today time.Time) (Streak, error) {
	raw, err := s.queries.ListCheckinDays(ctx)
	if err != nil {
		return Streak{}, fmt.Errorf("list check-ins: %w", err)
	}
	days := make([]time.Time, 0, len(raw))
	for _, d := range raw {
		t, err := time.Parse(dayLayout, d)
		if err != nil {
			continue
		}
		days = append(days, t)
	}
	return computeStreak(days, today), nil
}

// computeStreak expects days sorted ascending, one entry per date.
func computeStreak(days []time.Time, today time.Time) Streak {
	st := Streak{Total: len(days)}
	if len(days) == 0 {
		return st
	}

	run := 1
	st.Longest = 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > st.Longest {
			st.Longest = run
		}
	}

	last := days[len(days)-1]
	st.LastCheckIn = last
	y, m, d := today.Date()
	todayUTC := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	st.CheckedInToday = last.Equal(todayUTC)
	if st.CheckedInToday || last.Equal(todayUTC.AddDate(0, 0, -1)) {
		st.Current = run
	}
	return st
}
