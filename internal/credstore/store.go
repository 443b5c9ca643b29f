// Package credstore persists session credentials between process runs.
// Implementations never panic and degrade to a no-op when the backing
// storage cannot be opened, so callers can treat persistence as optional.
package credstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/mlaakso/clusterdash/internal/session"
)

// Store is the credential persistence contract. Load methods return
// (nil, nil) when nothing is stored or storage is unavailable.
type Store interface {
	// SaveSession writes tokens and user in one transaction, so a crash
	// can never leave tokens without the matching user row.
	SaveSession(tokens *session.TokenSet, user *session.User) error
	LoadTokens() (*session.TokenSet, error)
	LoadUser() (*session.User, error)

	// SaveReturnURL remembers the route to resume after login.
	SaveReturnURL(url string) error
	// TakeReturnURL returns and clears the remembered route.
	TakeReturnURL() (string, error)

	// Clear removes everything. Used on logout; never fails loudly.
	Clear() error
	Close() error
}

// Open returns a SQLiteStore, or a NullStore when the database cannot be
// opened. Credential persistence is best effort: a broken disk should not
// prevent login, only session resumption across restarts.
func Open(dbPath string, encryptionKey []byte) Store {
	s, err := NewSQLiteStore(dbPath, encryptionKey)
	if err != nil {
		log.Warn().Err(err).Str("dbPath", dbPath).
			Msg("credential store unavailable, sessions will not persist")
		return NewNullStore()
	}
	return s
}

const (
	keyTokens    = "tokens"
	keyUser      = "user"
	keyReturnURL = "return_url"
)

// SQLiteStore implements Store on a single-row-per-key SQLite table with
// AES-GCM encrypted values.
type SQLiteStore struct {
	db            *sql.DB
	encryptionKey []byte
	mu            sync.RWMutex
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database at dbPath.
func NewSQLiteStore(dbPath string, encryptionKey []byte) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set file permissions (only works on creation)
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		// Ignore error if file doesn't exist yet
	}

	store := &SQLiteStore{db: db, encryptionKey: encryptionKey}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS credentials (
		key TEXT PRIMARY KEY,
		encrypted_value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create credentials table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) putTx(tx *sql.Tx, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	encrypted, err := Encrypt(raw, s.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", key, err)
	}
	_, err = tx.Exec(`
		INSERT INTO credentials (key, encrypted_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			encrypted_value = excluded.encrypted_value,
			updated_at = excluded.updated_at
	`, key, encrypted, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) get(key string, dest any) (bool, error) {
	var encrypted string
	err := s.db.QueryRow(
		"SELECT encrypted_value FROM credentials WHERE key = ?", key,
	).Scan(&encrypted)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query %s: %w", key, err)
	}
	raw, err := Decrypt(encrypted, s.encryptionKey)
	if err != nil {
		return false, fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

// SaveSession writes tokens and user atomically.
func (s *SQLiteStore) SaveSession(tokens *session.TokenSet, user *session.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.putTx(tx, keyTokens, tokens); err != nil {
		return err
	}
	if user != nil {
		if err := s.putTx(tx, keyUser, user); err != nil {
			return err
		}
	} else {
		// Cookie-based sessions have no profile yet; drop any stale one.
		if _, err := tx.Exec("DELETE FROM credentials WHERE key = ?", keyUser); err != nil {
			return fmt.Errorf("failed to clear stale user: %w", err)
		}
	}
	return tx.Commit()
}

// LoadTokens returns the persisted token set, or nil when absent.
func (s *SQLiteStore) LoadTokens() (*session.TokenSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tokens session.TokenSet
	ok, err := s.get(keyTokens, &tokens)
	if err != nil || !ok {
		return nil, err
	}
	return &tokens, nil
}

// LoadUser returns the persisted user profile, or nil when absent.
func (s *SQLiteStore) LoadUser() (*session.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var user session.User
	ok, err := s.get(keyUser, &user)
	if err != nil || !ok {
		return nil, err
	}
	return &user, nil
}

// SaveReturnURL remembers the route to resume after login.
func (s *SQLiteStore) SaveReturnURL(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := s.putTx(tx, keyReturnURL, url); err != nil {
		return err
	}
	return tx.Commit()
}

// TakeReturnURL returns and clears the remembered route.
func (s *SQLiteStore) TakeReturnURL() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var url string
	ok, err := s.get(keyReturnURL, &url)
	if err != nil || !ok {
		return "", err
	}
	if _, err := s.db.Exec("DELETE FROM credentials WHERE key = ?", keyReturnURL); err != nil {
		return "", fmt.Errorf("failed to clear return url: %w", err)
	}
	return url, nil
}

// Clear removes all persisted credentials.
func (s *SQLiteStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM credentials"); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// NullStore is the degraded no-op implementation used when persistent
// storage is unavailable. All loads return empty, all saves succeed.
type NullStore struct{}

var _ Store = (*NullStore)(nil)

// NewNullStore returns the no-op store.
func NewNullStore() *NullStore { return &NullStore{} }

func (*NullStore) SaveSession(*session.TokenSet, *session.User) error { return nil }
func (*NullStore) LoadTokens() (*session.TokenSet, error)             { return nil, nil }
func (*NullStore) LoadUser() (*session.User, error)                   { return nil, nil }
func (*NullStore) SaveReturnURL(string) error                         { return nil }
func (*NullStore) TakeReturnURL() (string, error)                     { return "", nil }
func (*NullStore) Clear() error                                       { return nil }
func (*NullStore) Close() error                                       { return nil }
