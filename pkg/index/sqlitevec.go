package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// maxKNN is the largest k accepted by a vec0 KNN query.
const maxKNN = 4096

// sqliteVec stores vectors in a vec0 virtual table. During a build the
// database lives in memory and persist writes it out with VACUUM INTO; a
// loaded index opens the persisted file read-only.
type sqliteVec struct {
	db     *sql.DB
	dim    int
	metric Metric
	count  int
	logger *slog.Logger
}

func newSQLiteVec(dim int, metric Metric, logger *slog.Logger) (*sqliteVec, error) {
	db, err := openSQLite(":memory:")
	if err != nil {
		return nil, err
	}

	distance := ""
	if metric == MetricCosine {
		distance = " distance_metric=cosine"
	}
	stmts := []string{
		fmt.Sprintf(`CREATE VIRTUAL TABLE vec_records USING vec0(embedding float[%d]%s)`, dim, distance),
		`CREATE TABLE vec_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating sqlite-vec schema: %w", err)
		}
	}
	if _, err := db.Exec(
		`INSERT INTO vec_meta(key, value) VALUES ('dimension', ?), ('metric', ?)`,
		strconv.Itoa(dim), string(metric),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("writing sqlite-vec metadata: %w", err)
	}

	return &sqliteVec{db: db, dim: dim, metric: metric, logger: logger}, nil
}

// openSQLiteVecFile opens a persisted sqlite-vec artifact read-only and
// checks that it was written for dim and metric.
func openSQLiteVecFile(path string, dim int, metric Metric, logger *slog.Logger) (*sqliteVec, error) {
	db, err := openSQLite("file:" + path + "?mode=ro")
	if err != nil {
		return nil, err
	}

	s := &sqliteVec{db: db, dim: dim, metric: metric, logger: logger}
	meta := map[string]string{}
	rows, err := db.Query(`SELECT key, value FROM vec_meta`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: reading sqlite-vec metadata: %v", ErrCorrupt, err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			db.Close()
			return nil, fmt.Errorf("%w: scanning sqlite-vec metadata: %v", ErrCorrupt, err)
		}
		meta[k] = v
	}
	rows.Close()

	if meta["dimension"] != strconv.Itoa(dim) || meta["metric"] != string(metric) {
		db.Close()
		return nil, fmt.Errorf("%w: sqlite-vec artifact is %s/%s, metadata says %d/%s",
			ErrCorrupt, meta["dimension"], meta["metric"], dim, metric)
	}

	if err := db.QueryRow(`SELECT count(*) FROM vec_records`).Scan(&s.count); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: counting sqlite-vec rows: %v", ErrCorrupt, err)
	}
	return s, nil
}

func openSQLite(dsn string) (*sql.DB, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// an in-memory database exists per connection
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}
	return db, nil
}

// serializeFloat32 converts a float32 slice to the little-endian BLOB format
// sqlite-vec expects.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// vec0 rowids start at 1.
func rowID(id int) int64 { return int64(id) + 1 }

func (s *sqliteVec) add(id int, v []float32) error {
	if _, err := s.db.Exec(
		`INSERT INTO vec_records(rowid, embedding) VALUES (?, ?)`,
		rowID(id), serializeFloat32(v),
	); err != nil {
		return fmt.Errorf("inserting embedding for record %d: %w", id, err)
	}
	s.count++
	return nil
}

func (s *sqliteVec) train() error { return nil }

// search runs a vec0 KNN query, doubling the fetch size until the k-th
// score is strictly above the last fetched one so ties at the cut are
// resolved by record id. When k or the tie run exceeds what a KNN query
// accepts it falls back to scoring every row.
func (s *sqliteVec) search(ctx context.Context, q []float32, k int) ([]Hit, error) {
	if s.count == 0 || k <= 0 {
		return nil, nil
	}
	blob := serializeFloat32(q)

	fetch := min(s.count, 2*k)
	for fetch <= maxKNN {
		hits, err := s.knn(ctx, blob, fetch)
		if err != nil {
			return nil, err
		}
		if fetch == s.count || (len(hits) > k && hits[len(hits)-1].Score < hits[k-1].Score) {
			s.logger.Debug("queried sqlite-vec", "fetched", fetch, "results", len(hits))
			return topHits(hits, k), nil
		}
		if fetch == maxKNN {
			break
		}
		fetch = min(s.count, 2*fetch, maxKNN)
	}

	hits, err := s.scan(ctx, blob)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("scanned sqlite-vec", "results", len(hits))
	return topHits(hits, k), nil
}

// knn returns the fetch nearest rows ordered by distance.
func (s *sqliteVec) knn(ctx context.Context, blob []byte, fetch int) ([]Hit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rowid, distance
		FROM vec_records
		WHERE embedding MATCH ?
			AND k = ?
		ORDER BY distance
	`, blob, fetch)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	return s.collect(rows, fetch)
}

// scan scores every row with the distance function matching the metric.
func (s *sqliteVec) scan(ctx context.Context, blob []byte) ([]Hit, error) {
	fn := "vec_distance_l2"
	if s.metric == MetricCosine {
		fn = "vec_distance_cosine"
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT rowid, %s(embedding, ?) AS distance FROM vec_records`, fn), blob)
	if err != nil {
		return nil, fmt.Errorf("scanning vectors: %w", err)
	}
	return s.collect(rows, s.count)
}

func (s *sqliteVec) collect(rows *sql.Rows, n int) ([]Hit, error) {
	defer rows.Close()

	hits := make([]Hit, 0, n)
	for rows.Next() {
		var rowid int64
		var distance float64
		if err := rows.Scan(&rowid, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		h := Hit{RecordID: int(rowid - 1), Score: float32(-distance)}
		if s.metric == MetricCosine {
			h.Score = float32(1 - distance)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}
	return hits, nil
}

func (s *sqliteVec) len() int { return s.count }

func (s *sqliteVec) ids() ([]int, error) {
	rows, err := s.db.Query(`SELECT rowid FROM vec_records ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing sqlite-vec rows: %v", ErrCorrupt, err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var rowid int64
		if err := rows.Scan(&rowid); err != nil {
			return nil, fmt.Errorf("%w: scanning rowid: %v", ErrCorrupt, err)
		}
		out = append(out, int(rowid-1))
	}
	return out, rows.Err()
}

func (s *sqliteVec) persist(_ io.Writer, path string) error {
	if _, err := s.db.Exec(`VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("writing sqlite-vec artifact: %w", err)
	}
	return nil
}

func (s *sqliteVec) close() error {
	return s.db.Close()
}
