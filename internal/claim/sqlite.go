package claim

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/zeebo/xxh3"

	"github.com/DeusData/semgraph/internal/vname"
)

// SQLiteClient coordinates claims between workers through a shared SQLite
// database. The protocol is add-if-absent: the first worker to insert a
// hashed identity owns it. A small retry budget lets a bounded number of
// workers share very hot identities (the same header claimed redundantly),
// trading duplicate output for less claim contention.
//
// Decisions are cached locally and never revised; a storage error fails
// open, so a broken claim database degrades to duplicated output rather
// than lost output.
type SQLiteClient struct {
	mu       sync.Mutex
	db       *sql.DB
	table    map[vname.VName]vname.VName
	maxTries int

	requests uint64
	rejected uint64
}

// OpenSQLite opens (creating if needed) a shared claim database.
func OpenSQLite(path string) (*SQLiteClient, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open claim db: %w", err)
	}
	if _, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS claims (
		claimable TEXT PRIMARY KEY,
		claimant TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init claim schema: %w", err)
	}
	return &SQLiteClient{
		db:       db,
		table:    make(map[vname.VName]vname.VName),
		maxTries: 1,
	}, nil
}

// SetMaxRedundantClaims allows up to n workers to claim the same identity.
func (c *SQLiteClient) SetMaxRedundantClaims(n int) {
	if n > 0 {
		c.maxTries = n
	}
}

// AssignClaim seeds the local cache, bypassing the shared table.
func (c *SQLiteClient) AssignClaim(claimable, claimant vname.VName) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table[claimable] = claimant
}

// Claim implements Client.
func (c *SQLiteClient) Claim(claimant, v vname.VName) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests++
	if owner, ok := c.table[v]; ok {
		if owner.Equal(claimant) {
			return true
		}
		c.rejected++
		return false
	}
	claimantKey := hashVName(claimant, 0)
	for try := 0; try < c.maxTries; try++ {
		key := hashVName(v, uint64(try))
		res, err := c.db.Exec(
			`INSERT OR IGNORE INTO claims (claimable, claimant) VALUES (?, ?)`,
			key, claimantKey)
		if err != nil {
			// Fail open: duplicated facts beat dropped facts.
			slog.Error("claim.sqlite.insert", "err", err)
			return true
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			slog.Error("claim.sqlite.insert", "err", err)
			return true
		}
		if inserted > 0 {
			c.table[v] = claimant
			return true
		}
	}
	c.table[v] = vname.VName{}
	c.rejected++
	return false
}

// ClaimBatch implements Client.
func (c *SQLiteClient) ClaimBatch(pairs []Pair) bool {
	return claimBatch(c, pairs)
}

// Close logs claim statistics and releases the database.
func (c *SQLiteClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	reject := 0.0
	if c.requests > 0 {
		reject = float64(c.rejected) / float64(c.requests)
	}
	slog.Info("claim.sqlite.stats",
		"approved", c.requests-c.rejected,
		"rejected", c.rejected,
		"reject_fraction", reject)
	return c.db.Close()
}

// hashVName folds a VName and a retry counter into a fixed-width key.
// The field order is part of the wire contract between workers.
func hashVName(v vname.VName, try uint64) string {
	h := xxh3.New()
	h.WriteString(v.Signature)
	h.Write([]byte{0})
	h.WriteString(v.Path)
	h.Write([]byte{0})
	h.WriteString(v.Language)
	h.Write([]byte{0})
	h.WriteString(v.Root)
	h.Write([]byte{0})
	h.WriteString(v.Corpus)
	h.Write([]byte{0})
	h.WriteString(strconv.FormatUint(try, 10))
	sum := h.Sum128()
	return strconv.FormatUint(sum.Hi, 16) + strconv.FormatUint(sum.Lo, 16)
}
