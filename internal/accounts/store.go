package accounts

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/captionstudio/captionstudio/internal/database"
	"github.com/captionstudio/captionstudio/internal/tokenvault"
)

// Page is one manageable Facebook page attached to a connected account.
type Page struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}

// Record is one connected social account.
type Record struct {
	Platform    string
	AccessToken string
	UserID      string
	Pages       []Page
	ExpiresAt   time.Time
	ConnectedAt time.Time
}

// Store holds connected accounts keyed by platform. It is a small interface
// so the backing store can change (today SQLite, in-memory in tests) without
// touching callers.
type Store interface {
	Put(rec Record) error
	Get(platform string) (Record, bool, error)
	Delete(platform string) error
	List() ([]Record, error)
}

// SQLiteStore persists records in the social_accounts table. Access tokens
// and page lists are sealed by the vault before insert.
type SQLiteStore struct {
	db    *database.DB
	vault *tokenvault.Vault
}

func NewSQLiteStore(db *database.DB, vault *tokenvault.Vault) *SQLiteStore {
	return &SQLiteStore{db: db, vault: vault}
}

func (s *SQLiteStore) Put(rec Record) error {
	sealedToken, err := s.vault.Seal(rec.AccessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}

	sealedPages := ""
	if len(rec.Pages) > 0 {
		sealedPages, err = s.vault.SealJSON(rec.Pages)
		if err != nil {
			return fmt.Errorf("seal pages: %w", err)
		}
	}

	var expires interface{}
	if !rec.ExpiresAt.IsZero() {
		expires = rec.ExpiresAt.UTC()
	}

	_, err = s.db.Exec(`INSERT INTO social_accounts (platform, access_token, user_id, pages, expires_at, connected_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(platform) DO UPDATE SET
			access_token = excluded.access_token,
			user_id = excluded.user_id,
			pages = excluded.pages,
			expires_at = excluded.expires_at,
			connected_at = excluded.connected_at`,
		rec.Platform, sealedToken, rec.UserID, sealedPages, expires)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(platform string) (Record, bool, error) {
	var (
		rec         Record
		sealedToken string
		sealedPages string
		expires     sql.NullTime
	)
	err := s.db.QueryRow(
		"SELECT platform, access_token, user_id, pages, expires_at, connected_at FROM social_accounts WHERE platform = ?",
		platform,
	).Scan(&rec.Platform, &sealedToken, &rec.UserID, &sealedPages, &expires, &rec.ConnectedAt)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("query account: %w", err)
	}

	rec.AccessToken, err = s.vault.Open(sealedToken)
	if err != nil {
		return Record{}, false, fmt.Errorf("open access token: %w", err)
	}
	if sealedPages != "" {
		if err := s.vault.OpenJSON(sealedPages, &rec.Pages); err != nil {
			return Record{}, false, fmt.Errorf("open pages: %w", err)
		}
	}
	if expires.Valid {
		rec.ExpiresAt = expires.Time
	}
	return rec, true, nil
}

func (s *SQLiteStore) Delete(platform string) error {
	_, err := s.db.Exec("DELETE FROM social_accounts WHERE platform = ?", platform)
	return err
}

func (s *SQLiteStore) List() ([]Record, error) {
	rows, err := s.db.Query("SELECT platform FROM social_accounts ORDER BY platform")
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		names = append(names, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []Record
	for _, p := range names {
		rec, ok, err := s.Get(p)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// PurgeExpired drops accounts whose tokens expired before now.
func (s *SQLiteStore) PurgeExpired(now time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM social_accounts WHERE expires_at IS NOT NULL AND expires_at < ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MemoryStore is the in-memory Store used by tests.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]Record)}
}

func (m *MemoryStore) Put(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ConnectedAt.IsZero() {
		rec.ConnectedAt = time.Now()
	}
	m.recs[rec.Platform] = rec
	return nil
}

func (m *MemoryStore) Get(platform string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[platform]
	return rec, ok, nil
}

func (m *MemoryStore) Delete(platform string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, platform)
	return nil
}

func (m *MemoryStore) List() ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.recs))
	for _, rec := range m.recs {
		out = append(out, rec)
	}
	return out, nil
}
