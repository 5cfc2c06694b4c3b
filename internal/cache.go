package internal

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/interopkit/voucher"
)

// expirySkew is subtracted from a cached voucher's remaining lifetime so a
// token is never returned moments before the platform stops accepting it.
const expirySkew = 30 * time.Second

// TokenCache stores issued vouchers on disk so repeated CLI invocations
// within a token's lifetime do not hit the authorization server again.
type TokenCache struct {
	db *sqlx.DB
}

// cachedToken is the row shape of the vouchers table.
type cachedToken struct {
	CacheKey    string    `db:"cache_key"`
	AccessToken string    `db:"access_token"`
	TokenType   string    `db:"token_type"`
	Scope       string    `db:"scope"`
	ExpiresAt   time.Time `db:"expires_at"`
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS vouchers (
	cache_key    TEXT PRIMARY KEY,
	access_token TEXT NOT NULL,
	token_type   TEXT NOT NULL,
	scope        TEXT NOT NULL DEFAULT '',
	expires_at   TIMESTAMP NOT NULL
);
`

// OpenTokenCache opens (creating if necessary) the cache database at path.
// An empty path yields an in-memory cache, useful in tests and for
// --no-cache runs that still want the same code path.
func OpenTokenCache(path string) (*TokenCache, error) {
	var dsn string
	if path == "" {
		// Each :memory: connection is a separate database, so pooling must
		// be disabled below.
		dsn = "file::memory:?_pragma=temp_store(2)&_pragma=journal_mode(off)&_pragma=synchronous(off)"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening voucher cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(cacheSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}

	slog.Debug("voucher cache opened", "path", path)
	return &TokenCache{db: db}, nil
}

// Close releases the underlying database.
func (c *TokenCache) Close() error {
	return c.db.Close()
}

// cacheKey derives the lookup key for a (endpoint, client, scopes) triple.
// Scopes are sorted so ordering does not fragment the cache.
func cacheKey(endpoint, clientID string, scopes []string) string {
	sorted := append([]string(nil), scopes...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(endpoint + "\x00" + clientID + "\x00" + strings.Join(sorted, " ")))
	return hex.EncodeToString(sum[:])
}

// Get returns a still-valid cached voucher for the triple, or nil when no
// usable entry exists. ExpiresIn on the returned token is recomputed from
// the stored absolute expiry.
func (c *TokenCache) Get(endpoint, clientID string, scopes []string) (*voucher.TokenResponse, error) {
	var row cachedToken
	err := c.db.Get(&row, "SELECT * FROM vouchers WHERE cache_key = ?", cacheKey(endpoint, clientID, scopes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading voucher cache: %w", err)
	}

	remaining := time.Until(row.ExpiresAt) - expirySkew
	if remaining <= 0 {
		return nil, nil
	}

	slog.Debug("voucher cache hit", "expires_in", int64(remaining.Seconds()))
	return &voucher.TokenResponse{
		AccessToken: row.AccessToken,
		TokenType:   row.TokenType,
		ExpiresIn:   int64(remaining.Seconds()),
		Scope:       row.Scope,
	}, nil
}

// Put stores an issued voucher, replacing any previous entry for the same
// triple. Tokens without a positive lifetime are not cached.
func (c *TokenCache) Put(endpoint, clientID string, scopes []string, token *voucher.TokenResponse) error {
	if token == nil || token.ExpiresIn <= 0 {
		return nil
	}
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO vouchers (cache_key, access_token, token_type, scope, expires_at) VALUES (?, ?, ?, ?, ?)",
		cacheKey(endpoint, clientID, scopes),
		token.AccessToken,
		token.TokenType,
		token.Scope,
		time.Now().Add(time.Duration(token.ExpiresIn)*time.Second),
	)
	if err != nil {
		return fmt.Errorf("writing voucher cache: %w", err)
	}
	return nil
}

// Purge removes expired entries and returns how many were deleted.
func (c *TokenCache) Purge() (int64, error) {
	res, err := c.db.Exec("DELETE FROM vouchers WHERE expires_at <= ?", time.Now())
	if err != nil {
		return 0, fmt.Errorf("purging voucher cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged vouchers: %w", err)
	}
	if n > 0 {
		slog.Debug("purged expired vouchers", "count", n)
	}
	return n, nil
}
