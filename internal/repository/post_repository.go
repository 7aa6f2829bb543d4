package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iconidentify/favmirror/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id INTEGER NOT NULL UNIQUE,
		created_at INTEGER NOT NULL DEFAULT (unixepoch())
	);
	CREATE TABLE IF NOT EXISTS downloads (
		post_id INTEGER PRIMARY KEY REFERENCES posts(id),
		file_name TEXT NOT NULL UNIQUE,
		mime TEXT NOT NULL,
		extension TEXT NOT NULL,
		original INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (unixepoch())
	);
	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE CHECK (name <> ''),
		kind TEXT
	);
	CREATE TABLE IF NOT EXISTS post_tags (
		post_id INTEGER NOT NULL REFERENCES posts(id),
		tag_id INTEGER NOT NULL REFERENCES tags(id),
		PRIMARY KEY (post_id, tag_id)
	);
	CREATE INDEX IF NOT EXISTS idx_post_tags_tag ON post_tags(tag_id);
`

// SQLitePostRepository implements PostRepository on SQLite.
type SQLitePostRepository struct {
	db *sql.DB
}

// OpenSQLite opens (creating if missing) the database at path and ensures
// the schema exists. The caller should call Close when done.
func OpenSQLite(ctx context.Context, path string) (*SQLitePostRepository, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection serializes writers so concurrent workers never
	// race for the SQLite write lock.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLitePostRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *SQLitePostRepository) Close() error {
	return r.db.Close()
}

// Ping checks the database is reachable.
func (r *SQLitePostRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InsertPosts inserts unknown ids and returns the newly inserted ones.
func (r *SQLitePostRepository) InsertPosts(ctx context.Context, ids []domain.ExternalID) ([]domain.ExternalID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		INSERT INTO posts (external_id)
		SELECT value FROM json_each(?) WHERE true
		ON CONFLICT (external_id) DO NOTHING
		RETURNING external_id`,
		jsonArray(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("insert posts: %w", err)
	}

	inserted, err := scanExternalIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("insert posts: %w", err)
	}

	// RETURNING order is unspecified; report in input order.
	isNew := make(map[domain.ExternalID]bool, len(inserted))
	for _, id := range inserted {
		isNew[id] = true
	}
	result := make([]domain.ExternalID, 0, len(inserted))
	for _, id := range ids {
		if isNew[id] {
			result = append(result, id)
			delete(isNew, id)
		}
	}
	return result, nil
}

// PendingPosts returns posts without a download record, newest first.
func (r *SQLitePostRepository) PendingPosts(ctx context.Context) ([]domain.ExternalID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.external_id
		FROM posts p
		LEFT JOIN downloads d ON d.post_id = p.id
		WHERE d.post_id IS NULL
		ORDER BY p.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query pending posts: %w", err)
	}
	return scanExternalIDs(rows)
}

// DownloadedPosts returns the subset of ids that have a download record.
func (r *SQLitePostRepository) DownloadedPosts(ctx context.Context, ids []domain.ExternalID) ([]domain.ExternalID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT p.external_id
		FROM posts p
		JOIN downloads d ON d.post_id = p.id
		WHERE p.external_id IN (SELECT value FROM json_each(?))
		ORDER BY p.id DESC`,
		jsonArray(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("query downloaded posts: %w", err)
	}
	return scanExternalIDs(rows)
}

// InternalID resolves the local sequence id of a known post.
func (r *SQLitePostRepository) InternalID(ctx context.Context, id domain.ExternalID) (domain.InternalID, error) {
	var internal int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM posts WHERE external_id = ?`, int64(id),
	).Scan(&internal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrPostNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query post id: %w", err)
	}
	return domain.InternalID(internal), nil
}

// CommitDownload records the artifact of an existing post with its tags.
func (r *SQLitePostRepository) CommitDownload(ctx context.Context, id domain.ExternalID, media domain.MediaInfo, tags []domain.Tag) (*domain.Download, error) {
	return r.commit(ctx, id, media, tags, false)
}

// CommitUpload inserts the post when missing, then records its artifact
// and tags, all in one transaction.
func (r *SQLitePostRepository) CommitUpload(ctx context.Context, id domain.ExternalID, media domain.MediaInfo, tags []domain.Tag) (*domain.Download, error) {
	return r.commit(ctx, id, media, tags, true)
}

func (r *SQLitePostRepository) commit(ctx context.Context, id domain.ExternalID, media domain.MediaInfo, tags []domain.Tag, createPost bool) (*domain.Download, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if createPost {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO posts (external_id) VALUES (?) ON CONFLICT (external_id) DO NOTHING`,
			int64(id),
		); err != nil {
			return nil, fmt.Errorf("insert post: %w", err)
		}
	}

	var postID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM posts WHERE external_id = ?`, int64(id)).Scan(&postID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query post id: %w", err)
	}

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM downloads WHERE post_id = ?`, postID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check download: %w", err)
	}
	if exists > 0 {
		return nil, domain.ErrAlreadyDownloaded
	}

	download := &domain.Download{
		PostID:     domain.InternalID(postID),
		ExternalID: id,
		FileName:   domain.FileName(domain.InternalID(postID), id, media.Extension),
		MIME:       media.MIME,
		Extension:  media.Extension,
		Original:   media.Original,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO downloads (post_id, file_name, mime, extension, original, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		postID, download.FileName, download.MIME, download.Extension, download.Original, download.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert download: %w", err)
	}

	if err := insertTags(ctx, tx, postID, tags); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return download, nil
}

func insertTags(ctx context.Context, tx *sql.Tx, postID int64, tags []domain.Tag) error {
	tags = domain.NormalizeTags(tags)
	if len(tags) == 0 {
		return nil
	}

	upsertTag, err := tx.PrepareContext(ctx, `
		INSERT INTO tags (name, kind) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET kind = COALESCE(tags.kind, excluded.kind)`)
	if err != nil {
		return fmt.Errorf("prepare tag insert: %w", err)
	}
	defer upsertTag.Close()

	link, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO post_tags (post_id, tag_id)
		SELECT ?, id FROM tags WHERE name = ?`)
	if err != nil {
		return fmt.Errorf("prepare tag link: %w", err)
	}
	defer link.Close()

	for _, tag := range tags {
		var kind sql.NullString
		if tag.Kind != domain.TagKindNone {
			kind = sql.NullString{String: string(tag.Kind), Valid: true}
		}
		if _, err := upsertTag.ExecContext(ctx, tag.Name, kind); err != nil {
			return fmt.Errorf("insert tag %q: %w", tag.Name, err)
		}
		if _, err := link.ExecContext(ctx, postID, tag.Name); err != nil {
			return fmt.Errorf("link tag %q: %w", tag.Name, err)
		}
	}
	return nil
}

// GetDownload returns the download record of a post.
func (r *SQLitePostRepository) GetDownload(ctx context.Context, id domain.ExternalID) (*domain.Download, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT d.post_id, p.external_id, d.file_name, d.mime, d.extension, d.original, d.created_at
		FROM downloads d
		JOIN posts p ON p.id = d.post_id
		WHERE p.external_id = ?`, int64(id))

	d, err := scanDownload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query download: %w", err)
	}
	return d, nil
}

// ListDownloads returns every download record, newest first.
func (r *SQLitePostRepository) ListDownloads(ctx context.Context) ([]*domain.Download, error) {
	return r.queryDownloads(ctx, `
		SELECT d.post_id, p.external_id, d.file_name, d.mime, d.extension, d.original, d.created_at
		FROM downloads d
		JOIN posts p ON p.id = d.post_id
		ORDER BY d.post_id DESC`)
}

// DownloadPage returns up to limit download records after skipping offset,
// newest first.
func (r *SQLitePostRepository) DownloadPage(ctx context.Context, limit, offset int) ([]*domain.Download, error) {
	return r.queryDownloads(ctx, `
		SELECT d.post_id, p.external_id, d.file_name, d.mime, d.extension, d.original, d.created_at
		FROM downloads d
		JOIN posts p ON p.id = d.post_id
		ORDER BY d.post_id DESC
		LIMIT ? OFFSET ?`, limit, offset)
}

// DownloadsFor returns the download records of ids in input order. Ids
// without a record are skipped.
func (r *SQLitePostRepository) DownloadsFor(ctx context.Context, ids []domain.ExternalID) ([]*domain.Download, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := r.queryDownloads(ctx, `
		SELECT d.post_id, p.external_id, d.file_name, d.mime, d.extension, d.original, d.created_at
		FROM downloads d
		JOIN posts p ON p.id = d.post_id
		WHERE p.external_id IN (SELECT value FROM json_each(?))`, jsonArray(ids))
	if err != nil {
		return nil, err
	}

	byID := make(map[domain.ExternalID]*domain.Download, len(found))
	for _, d := range found {
		byID[d.ExternalID] = d
	}
	downloads := make([]*domain.Download, 0, len(found))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			downloads = append(downloads, d)
			delete(byID, id)
		}
	}
	return downloads, nil
}

func (r *SQLitePostRepository) queryDownloads(ctx context.Context, query string, args ...any) ([]*domain.Download, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query downloads: %w", err)
	}
	defer rows.Close()

	var downloads []*domain.Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		downloads = append(downloads, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate downloads: %w", err)
	}
	return downloads, nil
}

// Search returns posts tagged with every include term and none of the
// exclude terms, newest first. The include match counts distinct tags per
// post and keeps posts whose count equals the number of include terms.
func (r *SQLitePostRepository) Search(ctx context.Context, q domain.SearchQuery) ([]domain.ExternalID, error) {
	if q.IsEmpty() {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT p.external_id
		FROM posts p
		JOIN post_tags pt ON pt.post_id = p.id
		JOIN tags t ON t.id = pt.tag_id
		WHERE t.name IN (SELECT value FROM json_each(?))
		  AND p.id NOT IN (
			SELECT xpt.post_id
			FROM post_tags xpt
			JOIN tags xt ON xt.id = xpt.tag_id
			WHERE xt.name IN (SELECT value FROM json_each(?))
		  )
		GROUP BY p.id
		HAVING COUNT(DISTINCT t.id) = ?
		ORDER BY p.id DESC`,
		jsonArray(q.Include), jsonArray(q.Exclude), len(q.Include),
	)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	return scanExternalIDs(rows)
}

// Autocomplete returns tags whose name contains term, most used first.
func (r *SQLitePostRepository) Autocomplete(ctx context.Context, term string) ([]domain.TagUsage, error) {
	like := "%" + escapeLike(strings.ToLower(strings.TrimSpace(term))) + "%"

	rows, err := r.db.QueryContext(ctx, `
		SELECT t.name, COALESCE(t.kind, ''), COUNT(pt.post_id) AS uses
		FROM tags t
		LEFT JOIN post_tags pt ON pt.tag_id = t.id
		WHERE t.name LIKE ? ESCAPE '\'
		GROUP BY t.id
		ORDER BY uses DESC, t.name ASC
		LIMIT ?`,
		like, domain.AutocompleteLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("autocomplete tags: %w", err)
	}
	defer rows.Close()

	suggestions := make([]domain.TagUsage, 0, domain.AutocompleteLimit)
	for rows.Next() {
		var (
			s    domain.TagUsage
			kind string
		)
		if err := rows.Scan(&s.Name, &kind, &s.Uses); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		s.Kind = domain.TagKind(kind)
		suggestions = append(suggestions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return suggestions, nil
}

// PostCount returns the number of known posts.
func (r *SQLitePostRepository) PostCount(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// DownloadCount returns the number of download records.
func (r *SQLitePostRepository) DownloadCount(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM downloads`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count downloads: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDownload(row rowScanner) (*domain.Download, error) {
	var (
		d          domain.Download
		postID     int64
		externalID int64
		createdAt  int64
	)
	if err := row.Scan(&postID, &externalID, &d.FileName, &d.MIME, &d.Extension, &d.Original, &createdAt); err != nil {
		return nil, err
	}
	d.PostID = domain.InternalID(postID)
	d.ExternalID = domain.ExternalID(externalID)
	d.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &d, nil
}

func scanExternalIDs(rows *sql.Rows) ([]domain.ExternalID, error) {
	defer rows.Close()

	var ids []domain.ExternalID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan post id: %w", err)
		}
		ids = append(ids, domain.ExternalID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate post ids: %w", err)
	}
	return ids, nil
}

// jsonArray encodes values as a JSON array for json_each binding, so every
// query keeps a fixed shape regardless of how many values are passed.
func jsonArray[T any](values []T) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
