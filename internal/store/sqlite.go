package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/imagevault/imagevault/internal/distance"
	verrors "github.com/imagevault/imagevault/internal/errors"
)

// Schema statements. If any of these change, the row scanners below must be
// updated to match.
const (
	imageSchema = `CREATE TABLE IF NOT EXISTS images (
		id               INTEGER PRIMARY KEY,
		filename         TEXT NOT NULL,
		path             TEXT NOT NULL UNIQUE,
		image_width      INTEGER NOT NULL,
		image_height     INTEGER NOT NULL,
		thumbnail        BLOB NOT NULL,
		thumbnail_width  INTEGER NOT NULL,
		thumbnail_height INTEGER NOT NULL
	)`
	tagSchema = `CREATE TABLE IF NOT EXISTS tags (
		image_id INTEGER NOT NULL REFERENCES images(id) ON DELETE CASCADE,
		name     TEXT NOT NULL,
		value    TEXT
	)`
	tagIndexSchema = `CREATE INDEX IF NOT EXISTS idx_tags_image_id ON tags(image_id)`
	// phashes and semantic_hashes are identical in shape so the two hash
	// kinds can be swapped in queries.
	hashSchemaTemplate = `CREATE TABLE IF NOT EXISTS %s (
		image_id INTEGER PRIMARY KEY REFERENCES images(id) ON DELETE CASCADE,
		hash     BLOB NOT NULL
	)`
	watchedSchema = `CREATE TABLE IF NOT EXISTS watched_directories (glob TEXT PRIMARY KEY)`
)

// selectFields are explicitly ordered to match scanImageRow.
const selectFields = `
	images.id,
	images.filename,
	images.path,
	images.image_width,
	images.image_height,
	images.thumbnail,
	images.thumbnail_width,
	images.thumbnail_height,
	phashes.hash,
	semantic_hashes.hash,
	grouped_tags.tags`

// SQLiteStore implements Store on a single SQLite database file.
//
// All mutating operations and multi-statement reads take the store mutex
// around the shared connection; the lock is held for the span of one
// operation only, never for a whole indexing run, so readers are not
// starved while the pipeline drains.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	closed bool

	// watchedCache holds the watched-directory globs; nil means not
	// loaded. Invalidated on add/remove.
	watchedCache []string
}

// Verify interface implementation at compile time.
var _ Store = (*SQLiteStore)(nil)

// Open opens or creates the database at path and registers the distance
// functions. An empty path opens an in-memory database for testing.
// Open failure is fatal: there is no store without a storage backend.
func Open(path string) (*SQLiteStore, error) {
	registerDistanceFunctions()

	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, verrors.New(verrors.ErrCodeStorageOpen,
				fmt.Sprintf("cannot create database directory: %v", err), err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, verrors.New(verrors.ErrCodeStorageOpen,
			fmt.Sprintf("cannot open database %s: %v", dsn, err), err)
	}

	// Single connection: SQLite has one writer, and an in-memory database
	// exists per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, verrors.New(verrors.ErrCodeStorageOpen,
				fmt.Sprintf("cannot set pragma: %v", err), err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	stmts := []string{
		imageSchema,
		tagSchema,
		tagIndexSchema,
		fmt.Sprintf(hashSchemaTemplate, "phashes"),
		fmt.Sprintf(hashSchemaTemplate, "semantic_hashes"),
		watchedSchema,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return verrors.New(verrors.ErrCodeStorageOpen,
				fmt.Sprintf("cannot initialize schema: %v", err), err)
		}
	}
	return nil
}

// Insert persists img atomically: base row, tag rows, and hash rows commit
// or roll back together, so a tag failure never leaves an orphan image row.
// The existence check and the insert share one critical section, which is
// what makes concurrent writers race-free.
func (s *SQLiteStore) Insert(ctx context.Context, img *Image) (int64, error) {
	if err := validateForInsert(img); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, verrors.Wrap(verrors.ErrCodeInsertFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM images WHERE path = ?", img.Path).Scan(&exists); err != nil {
		return 0, verrors.Wrap(verrors.ErrCodeInsertFailed, err)
	}
	if exists > 0 {
		return 0, verrors.Conflict(img.Path)
	}

	if err := s.checkHashLength(ctx, tx, "phashes", img.ContentHash); err != nil {
		return 0, err
	}
	if err := s.checkHashLength(ctx, tx, "semantic_hashes", img.VisualHash); err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO images (filename, path, image_width, image_height, thumbnail, thumbnail_width, thumbnail_height)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		img.Filename, img.Path, img.Width, img.Height, img.Thumbnail, img.ThumbWidth, img.ThumbHeight)
	if err != nil {
		return 0, verrors.Wrap(verrors.ErrCodeInsertFailed, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, verrors.Wrap(verrors.ErrCodeInsertFailed, err)
	}

	for name, value := range img.Tags {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO tags (image_id, name, value) VALUES (?, ?, ?)", id, name, value); err != nil {
			return 0, verrors.Wrap(verrors.ErrCodeInsertFailed, err)
		}
	}

	if len(img.ContentHash) > 0 {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO phashes (image_id, hash) VALUES (?, ?)", id, img.ContentHash); err != nil {
			return 0, verrors.Wrap(verrors.ErrCodeInsertFailed, err)
		}
	}
	if len(img.VisualHash) > 0 {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO semantic_hashes (image_id, hash) VALUES (?, ?)", id, img.VisualHash); err != nil {
			return 0, verrors.Wrap(verrors.ErrCodeInsertFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, verrors.Wrap(verrors.ErrCodeInsertFailed, err)
	}

	img.ID = id
	return id, nil
}

// validateForInsert enforces the persisted-record invariants: canonical
// path, resolution, and thumbnail are required.
func validateForInsert(img *Image) error {
	if img.ID != 0 {
		return verrors.New(verrors.ErrCodeInsertFailed,
			fmt.Sprintf("image already has id %d", img.ID), nil)
	}
	if img.Path == "" {
		return verrors.New(verrors.ErrCodeInsertFailed, "image has no canonical path", nil)
	}
	if img.Width <= 0 || img.Height <= 0 {
		return verrors.New(verrors.ErrCodeInsertFailed,
			fmt.Sprintf("image %s has no resolution", img.Path), nil)
	}
	if len(img.Thumbnail) == 0 {
		return verrors.New(verrors.ErrCodeInsertFailed,
			fmt.Sprintf("image %s has no thumbnail", img.Path), nil)
	}
	return nil
}

// checkHashLength enforces uniform vector length per hash table. Mixing
// lengths within one store is an invariant violation, not a silent skip.
func (s *SQLiteStore) checkHashLength(ctx context.Context, tx *sql.Tx, table string, hash []byte) error {
	if len(hash) == 0 {
		return nil
	}
	var existing int
	err := tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT length(hash) FROM %s LIMIT 1", table)).Scan(&existing)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return verrors.Wrap(verrors.ErrCodeInsertFailed, err)
	}
	if existing != len(hash) {
		return verrors.New(verrors.ErrCodeInsertFailed,
			fmt.Sprintf("hash length %d does not match store vector length %d in %s",
				len(hash), existing, table), nil)
	}
	return nil
}

// ExistsByPath reports whether a canonical path is already indexed.
func (s *SQLiteStore) ExistsByPath(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM images WHERE path = ?", path).Scan(&count); err != nil {
		return false, verrors.Wrap(verrors.ErrCodeQueryExecution, err)
	}
	return count > 0, nil
}

// Find executes a filtered, optionally distance-ranked scan. The distance
// is computed inside SQLite by the registered scalar functions, so vectors
// are never materialized into process memory. Ranked results are ascending
// by distance with ties broken by insertion id; unranked results are in
// filename order.
func (s *SQLiteStore) Find(ctx context.Context, filter Filter, rank *RankSpec, limit int) ([]*Image, error) {
	if limit <= 0 {
		limit = 100
	}

	distExpr := "NULL"
	orderBy := "images.filename ASC, images.id ASC"
	var args []any

	if rank != nil {
		if _, err := distance.Lookup(rank.Function); err != nil {
			return nil, verrors.Wrap(verrors.ErrCodeQueryExecution, err)
		}
		if len(rank.Reference) == 0 {
			return nil, verrors.New(verrors.ErrCodeQueryExecution, "rank reference vector is empty", nil)
		}
		distExpr = fmt.Sprintf("%s(?, semantic_hashes.hash)", rank.Function)
		orderBy = "dist ASC, images.id ASC"
		args = append(args, rank.Reference)
	}

	where, whereArgs := compileFilter(filter)
	if rank != nil {
		// The alias is not visible in WHERE, so the expression repeats.
		where = append(where, "semantic_hashes.hash IS NOT NULL",
			fmt.Sprintf("%s(?, semantic_hashes.hash) <= ?", rank.Function))
		whereArgs = append(whereArgs, rank.Reference, rank.MaxDistance)
	}
	whereClause := "1=1"
	if len(where) > 0 {
		whereClause = strings.Join(where, " AND ")
	}
	args = append(args, whereArgs...)
	args = append(args, limit)

	query := fmt.Sprintf(`
		WITH grouped_tags AS (
			SELECT tags.image_id, JSON_GROUP_OBJECT(tags.name, tags.value) AS tags
			FROM tags
			GROUP BY tags.image_id
		)
		SELECT %s, %s AS dist
		FROM images
		LEFT JOIN phashes ON images.id = phashes.image_id
		LEFT JOIN semantic_hashes ON images.id = semantic_hashes.image_id
		LEFT JOIN grouped_tags ON images.id = grouped_tags.image_id
		WHERE %s
		ORDER BY %s
		LIMIT ?`, selectFields, distExpr, whereClause, orderBy)

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, verrors.Wrap(verrors.ErrCodeQueryExecution, err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Image
	for rows.Next() {
		img, err := scanImageRow(rows)
		if err != nil {
			return nil, verrors.Wrap(verrors.ErrCodeQueryExecution, err)
		}
		results = append(results, img)
	}
	if err := rows.Err(); err != nil {
		return nil, verrors.Wrap(verrors.ErrCodeQueryExecution, err)
	}
	return results, nil
}

// compileFilter turns a structured filter into parameterized SQL
// conditions. Tag conditions use EXISTS subqueries so that two tag clauses
// on the same image can match different tag rows.
func compileFilter(filter Filter) ([]string, []any) {
	var conds []string
	var args []any

	for _, clause := range filter {
		if clause.Tag != nil {
			conds = append(conds,
				`EXISTS (SELECT 1 FROM tags t WHERE t.image_id = images.id AND t.name LIKE ? ESCAPE '\' AND t.value LIKE ? ESCAPE '\')`)
			args = append(args, likePattern(clause.Tag.Name), likePattern(clause.Tag.Value))
			continue
		}

		var ors []string
		for _, m := range clause.Any {
			switch m.Field {
			case FieldFilename:
				ors = append(ors, `images.filename LIKE ? ESCAPE '\'`)
			case FieldPath:
				ors = append(ors, `images.path LIKE ? ESCAPE '\'`)
			case FieldTagName:
				ors = append(ors, `EXISTS (SELECT 1 FROM tags t WHERE t.image_id = images.id AND t.name LIKE ? ESCAPE '\')`)
			case FieldTagValue:
				ors = append(ors, `EXISTS (SELECT 1 FROM tags t WHERE t.image_id = images.id AND t.value LIKE ? ESCAPE '\')`)
			}
			args = append(args, likePattern(m.Substring))
		}
		if len(ors) > 0 {
			conds = append(conds, "("+strings.Join(ors, " OR ")+")")
		}
	}
	return conds, args
}

// likePattern wraps a substring in LIKE wildcards, escaping user-supplied
// wildcard characters.
func likePattern(substring string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(substring) + "%"
}

// scanImageRow decodes one result row in selectFields order plus dist.
func scanImageRow(rows *sql.Rows) (*Image, error) {
	var img Image
	var phash, vhash []byte
	var tagsJSON sql.NullString
	var dist sql.NullFloat64

	if err := rows.Scan(&img.ID, &img.Filename, &img.Path, &img.Width, &img.Height,
		&img.Thumbnail, &img.ThumbWidth, &img.ThumbHeight,
		&phash, &vhash, &tagsJSON, &dist); err != nil {
		return nil, err
	}

	img.ContentHash = phash
	img.VisualHash = vhash
	img.Tags = map[string]string{}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &img.Tags); err != nil {
			return nil, fmt.Errorf("cannot decode tags for image %d: %w", img.ID, err)
		}
	}
	if dist.Valid {
		d := dist.Float64
		img.Distance = &d
	}
	return &img, nil
}

// DeleteImage removes an image row; tag and hash rows cascade via foreign
// keys. Used by the re-index path (delete then reinsert).
func (s *SQLiteStore) DeleteImage(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM images WHERE id = ?", id); err != nil {
		return verrors.Wrap(verrors.ErrCodeQueryExecution, err)
	}
	return nil
}

// Count returns the number of indexed images.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM images").Scan(&n); err != nil {
		return 0, verrors.Wrap(verrors.ErrCodeQueryExecution, err)
	}
	return n, nil
}

// AddWatchedDirectory registers a glob. Duplicates are rejected.
func (s *SQLiteStore) AddWatchedDirectory(ctx context.Context, glob string) error {
	if glob == "" {
		return verrors.New(verrors.ErrCodeQueryExecution, "empty watched-directory glob", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM watched_directories WHERE glob = ?", glob).Scan(&count); err != nil {
		return verrors.Wrap(verrors.ErrCodeQueryExecution, err)
	}
	if count > 0 {
		return verrors.Conflict(glob)
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO watched_directories (glob) VALUES (?)", glob); err != nil {
		return verrors.Wrap(verrors.ErrCodeQueryExecution, err)
	}
	s.watchedCache = nil
	return nil
}

// RemoveWatchedDirectory unregisters a glob.
func (s *SQLiteStore) RemoveWatchedDirectory(ctx context.Context, glob string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM watched_directories WHERE glob = ?", glob); err != nil {
		return verrors.Wrap(verrors.ErrCodeQueryExecution, err)
	}
	s.watchedCache = nil
	return nil
}

// WatchedDirectories returns the registered globs. The result is served
// from an in-memory cache that add/remove invalidate.
func (s *SQLiteStore) WatchedDirectories(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watchedCache == nil {
		rows, err := s.db.QueryContext(ctx, "SELECT glob FROM watched_directories ORDER BY glob")
		if err != nil {
			return nil, verrors.Wrap(verrors.ErrCodeQueryExecution, err)
		}
		defer func() { _ = rows.Close() }()

		globs := []string{}
		for rows.Next() {
			var g string
			if err := rows.Scan(&g); err != nil {
				return nil, verrors.Wrap(verrors.ErrCodeQueryExecution, err)
			}
			globs = append(globs, g)
		}
		if err := rows.Err(); err != nil {
			return nil, verrors.Wrap(verrors.ErrCodeQueryExecution, err)
		}
		s.watchedCache = globs
	}

	out := make([]string, len(s.watchedCache))
	copy(out, s.watchedCache)
	return out, nil
}

// Close closes the database. Safe to call twice.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
