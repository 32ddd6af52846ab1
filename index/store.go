package index

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	embedding  TEXT NOT NULL,
	model      TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_model ON documents(model);
`

// Document is one retrievable piece of context.
type Document struct {
	ID        string
	Text      string
	Embedding []float32
	// Distance is the cosine distance to the query; zero outside query results.
	Distance float32
}

// Result is the outcome of a retrieval. Degraded is set when the store could
// not run the query (no embedder, embedding failure); Err carries the cause.
type Result struct {
	Documents []Document
	Degraded  bool
	Err       error
}

// Texts returns document texts in retrieval order.
func (r Result) Texts() []string {
	texts := make([]string, len(r.Documents))
	for i, d := range r.Documents {
		texts[i] = d.Text
	}
	return texts
}

// Store persists documents in SQLite and serves nearest-neighbour queries
// from an in-memory HNSW graph keyed by content hash.
type Store struct {
	db       *sql.DB
	embedder Embedder

	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	texts map[string]string
	dims  int
}

// Open opens (creating if needed) the context database under dir and loads
// every document embedded with the current model into the graph.
// A nil embedder yields a store whose queries are always degraded.
func Open(dir string, embedder Embedder) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	dbPath := filepath.Join(dir, "context.db")
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open context db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping context db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate context db: %w", err)
	}

	s := &Store{
		db:       db,
		embedder: embedder,
		graph:    hnsw.NewGraph[string](),
		texts:    make(map[string]string),
	}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// load reads persisted documents for the active model.
// Rows from another model are skipped.
func (s *Store) load() error {
	if s.embedder == nil {
		return nil
	}

	rows, err := s.db.Query(`SELECT id, text, embedding FROM documents WHERE model = ? ORDER BY created_at`, s.embedder.Model())
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	defer rows.Close()

	var nodes []hnsw.Node[string]
	for rows.Next() {
		var id, text, raw string
		if err := rows.Scan(&id, &text, &raw); err != nil {
			return fmt.Errorf("scan document: %w", err)
		}
		var vec []float32
		if err := json.Unmarshal([]byte(raw), &vec); err != nil {
			slog.Warn("skipping document with corrupt embedding", "id", id, "error", err)
			continue
		}
		if s.dims == 0 {
			s.dims = len(vec)
		}
		if len(vec) != s.dims {
			slog.Warn("skipping document with mismatched dimensions", "id", id, "dims", len(vec))
			continue
		}
		nodes = append(nodes, hnsw.MakeNode(id, vec))
		s.texts[id] = text
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load documents: %w", err)
	}

	if len(nodes) > 0 {
		s.graph.Add(nodes...)
	}
	slog.Debug("context store loaded", "documents", len(nodes), "model", s.embedder.Model())
	return nil
}

// DocumentID returns the content-derived identifier for text.
func DocumentID(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h)
}

// Index embeds and stores text, returning its ID. Indexing identical text
// again is a no-op that returns the same ID.
func (s *Store) Index(ctx context.Context, text string) (string, error) {
	id := DocumentID(text)
	if s.embedder == nil {
		return "", fmt.Errorf("%w: no embedder configured", ErrEmbeddingUnavailable)
	}

	s.mu.RLock()
	_, exists := s.texts[id]
	s.mu.RUnlock()
	if exists {
		return id, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return "", err
	}
	if len(vectors) != 1 {
		return "", fmt.Errorf("%w: expected 1 embedding, got %d", ErrEmbeddingUnavailable, len(vectors))
	}
	vec := vectors[0]

	raw, err := json.Marshal(vec)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.texts[id]; exists {
		return id, nil
	}
	if s.dims != 0 && len(vec) != s.dims {
		return "", fmt.Errorf("%w: embedding has %d dimensions, store has %d", ErrEmbeddingUnavailable, len(vec), s.dims)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO documents (id, text, embedding, model, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, text, string(raw), s.embedder.Model(), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}

	s.graph.Add(hnsw.MakeNode(id, vec))
	s.texts[id] = text
	s.dims = len(vec)
	return id, nil
}

// Query returns up to k documents nearest to text, closest first.
// Failures never surface as errors; they mark the result as degraded.
func (s *Store) Query(ctx context.Context, text string, k int) Result {
	if s.embedder == nil {
		return Result{Degraded: true, Err: fmt.Errorf("%w: no embedder configured", ErrEmbeddingUnavailable)}
	}
	if k <= 0 {
		return Result{}
	}

	s.mu.RLock()
	empty := s.graph.Len() == 0
	s.mu.RUnlock()
	if empty {
		return Result{}
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return Result{Degraded: true, Err: err}
	}
	if len(vectors) != 1 {
		return Result{Degraded: true, Err: fmt.Errorf("%w: expected 1 embedding, got %d", ErrEmbeddingUnavailable, len(vectors))}
	}
	query := vectors[0]

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) != s.dims {
		return Result{Degraded: true, Err: fmt.Errorf("%w: query has %d dimensions, store has %d", ErrEmbeddingUnavailable, len(query), s.dims)}
	}

	neighbors := s.graph.Search(query, k)
	docs := make([]Document, 0, len(neighbors))
	for _, n := range neighbors {
		docs = append(docs, Document{
			ID:        n.Key,
			Text:      s.texts[n.Key],
			Embedding: n.Value,
			Distance:  hnsw.CosineDistance(query, n.Value),
		})
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Distance != docs[j].Distance {
			return docs[i].Distance < docs[j].Distance
		}
		return docs[i].ID < docs[j].ID
	})
	if len(docs) > k {
		docs = docs[:k]
	}
	return Result{Documents: docs}
}

// Len returns the number of documents in the graph.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Len()
}

// Model returns the active embedding model, or empty when retrieval is disabled.
func (s *Store) Model() string {
	if s.embedder == nil {
		return ""
	}
	return s.embedder.Model()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
