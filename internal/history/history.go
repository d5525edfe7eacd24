package history

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/captionstudio/captionstudio/internal/database"
	"github.com/captionstudio/captionstudio/internal/platforms"
)

// Entry is one recorded generation. Captions themselves are not persisted,
// only the shape of the request and its outcome.
type Entry struct {
	ID           string    `json:"id"`
	Platforms    []string  `json:"platforms"`
	Context      string    `json:"context,omitempty"`
	CaptionCount int       `json:"caption_count"`
	Degraded     bool      `json:"degraded"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

const contextSnippetLen = 200

type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Record inserts one entry and returns its generated id. Context is truncated
// to a snippet; the full text belongs to the request, not the log.
func (s *Store) Record(reqPlatforms []platforms.Platform, context string, captionCount int, degraded bool, dur time.Duration) (string, error) {
	names := make([]string, 0, len(reqPlatforms))
	for _, p := range reqPlatforms {
		names = append(names, string(p))
	}
	if len(context) > contextSnippetLen {
		context = context[:contextSnippetLen]
	}

	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO caption_history (id, platforms, context, caption_count, degraded, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, strings.Join(names, ","), context, captionCount, boolToInt(degraded), dur.Milliseconds(),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, platforms, context, caption_count, degraded, duration_ms, created_at
		 FROM caption_history ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			names    string
			degraded int
		)
		if err := rows.Scan(&e.ID, &names, &e.Context, &e.CaptionCount, &degraded, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, err
		}
		if names != "" {
			e.Platforms = strings.Split(names, ",")
		}
		e.Degraded = degraded != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// PurgeOlderThan removes entries created before the cutoff and reports how
// many were dropped.
func (s *Store) PurgeOlderThan(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM caption_history WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
