package sink

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/DeusData/semgraph/internal/schema"
	"github.com/DeusData/semgraph/internal/vname"
)

// Querier abstracts *sql.DB and *sql.Tx so sink methods work in both contexts.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// SQLite persists the emitted graph. Facts and edges are keyed by full VName
// tuples; replaying identical facts upserts, so re-indexing is idempotent.
//
// Sink methods deliberately swallow storage errors after logging them: a
// single failed write degrades the graph, it does not abort the compilation.
type SQLite struct {
	db     *sql.DB
	q      Querier // active querier: db or tx
	dbPath string
}

// OpenSQLite opens or creates a graph database at the given path.
func OpenSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open graph db: %w", err)
	}
	s := &SQLite{db: db, dbPath: dbPath}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init graph schema: %w", err)
	}
	return s, nil
}

// OpenMemorySQLite opens an in-memory graph database (for testing).
func OpenMemorySQLite() (*SQLite, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open memory graph db: %w", err)
	}
	s := &SQLite{db: db, dbPath: ":memory:"}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init graph schema: %w", err)
	}
	return s, nil
}

// WithTransaction executes fn within a single SQLite transaction. The
// callback receives a transaction-scoped sink; the receiver's q field is
// never mutated, so concurrent readers are unaffected.
func (s *SQLite) WithTransaction(fn func(tx *SQLite) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txSink := &SQLite{db: s.db, q: tx, dbPath: s.dbPath}
	if err := fn(txSink); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// DB returns the underlying sql.DB (for advanced queries).
func (s *SQLite) DB() *sql.DB {
	return s.db
}

func (s *SQLite) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS facts (
		signature TEXT NOT NULL,
		corpus TEXT NOT NULL,
		root TEXT NOT NULL,
		path TEXT NOT NULL,
		language TEXT NOT NULL,
		name TEXT NOT NULL,
		value BLOB NOT NULL,
		PRIMARY KEY (signature, corpus, root, path, language, name)
	);

	CREATE INDEX IF NOT EXISTS idx_facts_name ON facts(name);
	CREATE INDEX IF NOT EXISTS idx_facts_path ON facts(corpus, path);

	CREATE TABLE IF NOT EXISTS edges (
		source_signature TEXT NOT NULL,
		source_corpus TEXT NOT NULL,
		source_root TEXT NOT NULL,
		source_path TEXT NOT NULL,
		source_language TEXT NOT NULL,
		kind TEXT NOT NULL,
		target_signature TEXT NOT NULL,
		target_corpus TEXT NOT NULL,
		target_root TEXT NOT NULL,
		target_path TEXT NOT NULL,
		target_language TEXT NOT NULL,
		ordinal INTEGER NOT NULL DEFAULT -1,
		PRIMARY KEY (source_signature, source_corpus, source_root,
			source_path, source_language, kind,
			target_signature, target_corpus, target_root,
			target_path, target_language, ordinal)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_kind ON edges(kind);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_signature, target_corpus, kind);
	`)
	return err
}

// AddProperty implements Sink.
func (s *SQLite) AddProperty(v vname.VName, name string, value []byte) {
	_, err := s.q.Exec(`
		INSERT INTO facts (signature, corpus, root, path, language, name, value)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO UPDATE SET value=excluded.value`,
		v.Signature, v.Corpus, v.Root, v.Path, v.Language, name, value)
	if err != nil {
		slog.Error("sink.sqlite.fact", "name", name, "err", err)
	}
}

// AddEdge implements Sink.
func (s *SQLite) AddEdge(source vname.VName, kind schema.EdgeKind, target vname.VName, ordinal int) {
	_, err := s.q.Exec(`
		INSERT OR IGNORE INTO edges (
			source_signature, source_corpus, source_root, source_path, source_language,
			kind,
			target_signature, target_corpus, target_root, target_path, target_language,
			ordinal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		source.Signature, source.Corpus, source.Root, source.Path, source.Language,
		string(kind),
		target.Signature, target.Corpus, target.Root, target.Path, target.Language,
		ordinal)
	if err != nil {
		slog.Error("sink.sqlite.edge", "kind", kind, "err", err)
	}
}

// AddFileContent implements Sink.
func (s *SQLite) AddFileContent(v vname.VName, content []byte) {
	s.AddProperty(v, schema.FactNodeKind, []byte(schema.NodeFile))
	s.AddProperty(v, schema.FactText, content)
}

// AddMarkedSource implements Sink.
func (s *SQLite) AddMarkedSource(v vname.VName, ms *schema.MarkedSource) {
	if ms == nil {
		return
	}
	s.AddProperty(v, schema.FactCode, ms.Marshal())
}

// CountFacts returns the number of stored facts.
func (s *SQLite) CountFacts() (int, error) {
	var n int
	err := s.q.QueryRow(`SELECT COUNT(*) FROM facts`).Scan(&n)
	return n, err
}

// CountEdges returns the number of stored edges.
func (s *SQLite) CountEdges(kind schema.EdgeKind) (int, error) {
	var n int
	err := s.q.QueryRow(`SELECT COUNT(*) FROM edges WHERE kind=?`, string(kind)).Scan(&n)
	return n, err
}
