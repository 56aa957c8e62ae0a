package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/summary"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.RecapError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// Execer is satisfied by both *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const recordColumns = `id, title, channel, duration, url, video_id, summary_type,
	content, transcript, word_count, tags_json, is_favorite, created_at, last_accessed`

// Filters narrows List results. Zero values match everything.
type Filters struct {
	// Query is matched case-insensitively against title, channel and content.
	Query string
	Type  summary.Type
	// Since keeps summaries created at or after this Unix time.
	Since         *int64
	FavoritesOnly bool
}

// Stats aggregates the saved summaries.
type Stats struct {
	Total         int            `json:"total_summaries"`
	Favorites     int            `json:"favorite_count"`
	StorageBytes  int64          `json:"storage_bytes"`
	TypeBreakdown map[string]int `json:"type_breakdown"`
}

// Insert stores a new summary.
func Insert(ctx context.Context, q Execer, r *summary.Record) error {
	args, err := recordArgs(r)
	if err != nil {
		return err
	}

	query := `INSERT INTO summaries (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// Upsert inserts r or overwrites every column of the summary with the same ID.
func Upsert(ctx context.Context, q Execer, r *summary.Record) error {
	args, err := recordArgs(r)
	if err != nil {
		return err
	}

	query := `INSERT INTO summaries (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, channel = excluded.channel,
			duration = excluded.duration, url = excluded.url,
			video_id = excluded.video_id, summary_type = excluded.summary_type,
			content = excluded.content, transcript = excluded.transcript,
			word_count = excluded.word_count, tags_json = excluded.tags_json,
			is_favorite = excluded.is_favorite, created_at = excluded.created_at,
			last_accessed = excluded.last_accessed`
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func recordArgs(r *summary.Record) ([]any, error) {
	tagsJSON, err := encodeTags(r.Tags)
	if err != nil {
		return nil, err
	}
	return []any{
		r.ID, r.Title, r.Channel, toNullString(r.Duration), r.URL, toNullString(r.VideoID),
		string(r.SummaryType), r.Content, toNullString(r.Transcript), r.WordCount,
		tagsJSON, r.IsFavorite, r.CreatedAt, r.LastAccessed,
	}, nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetByID retrieves a summary by its ULID.
func GetByID(ctx context.Context, db *sql.DB, id string) (*summary.Record, error) {
	row := db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM summaries WHERE id = ?`, id)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// Touch sets last_accessed for a summary.
func Touch(ctx context.Context, db *sql.DB, id string, at int64) error {
	res, err := db.ExecContext(ctx, `UPDATE summaries SET last_accessed = ? WHERE id = ?`, at, id)
	return checkAffected(res, err, id)
}

// UpdateByID rewrites the user-editable fields of an existing summary:
// title, channel, content, tags and favorite flag.
func UpdateByID(ctx context.Context, db *sql.DB, r *summary.Record) error {
	tagsJSON, err := encodeTags(r.Tags)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE summaries
		SET title = ?, channel = ?, content = ?, tags_json = ?, is_favorite = ?
		WHERE id = ?`,
		r.Title, r.Channel, r.Content, tagsJSON, r.IsFavorite, r.ID,
	)
	return checkAffected(res, err, r.ID)
}

// Delete removes a summary.
func Delete(ctx context.Context, db *sql.DB, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM summaries WHERE id = ?`, id)
	return checkAffected(res, err, id)
}

// DeleteAll removes every summary and returns how many were removed.
func DeleteAll(ctx context.Context, q Execer) (int, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM summaries`)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// Prune deletes all but the keep most recent summaries and returns the
// number deleted.
func Prune(ctx context.Context, db *sql.DB, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := db.ExecContext(ctx, `
		DELETE FROM summaries WHERE id NOT IN (
			SELECT id FROM summaries ORDER BY created_at DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// Count returns the number of saved summaries.
func Count(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM summaries`).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// List returns summaries matching f, newest first, plus the total number of
// matches ignoring limit and offset.
func List(ctx context.Context, db *sql.DB, f Filters, limit, offset int) ([]summary.ListItem, int, error) {
	where, args := f.clause()

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM summaries`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT id, title, channel, duration, url, video_id, summary_type,
			word_count, LENGTH(content), tags_json, is_favorite, created_at, last_accessed
		FROM summaries` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	items := []summary.ListItem{}
	for rows.Next() {
		var (
			it       summary.ListItem
			duration sql.NullString
			videoID  sql.NullString
			sType    string
			tagsJSON sql.NullString
		)
		if err := rows.Scan(
			&it.ID, &it.Title, &it.Channel, &duration, &it.URL, &videoID, &sType,
			&it.WordCount, &it.ContentChars, &tagsJSON, &it.IsFavorite, &it.CreatedAt, &it.LastAccessed,
		); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		it.Duration = duration.String
		it.VideoID = videoID.String
		it.SummaryType = summary.Type(sType)
		it.Icon = it.SummaryType.Icon()
		if it.Tags, err = decodeTags(tagsJSON); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return items, total, nil
}

func (f Filters) clause() (string, []any) {
	var conds []string
	var args []any

	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		conds = append(conds, `(instr(`+foldFunc+`(title), ?) > 0 OR instr(`+foldFunc+`(channel), ?) > 0 OR instr(`+foldFunc+`(content), ?) > 0)`)
		args = append(args, q, q, q)
	}
	if f.Type != "" {
		conds = append(conds, `summary_type = ?`)
		args = append(args, string(f.Type))
	}
	if f.Since != nil {
		conds = append(conds, `created_at >= ?`)
		args = append(args, *f.Since)
	}
	if f.FavoritesOnly {
		conds = append(conds, `is_favorite = 1`)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// GetStats aggregates counts and storage over all summaries. StorageBytes
// approximates the stored size as the sum of the text column lengths.
func GetStats(ctx context.Context, db *sql.DB) (*Stats, error) {
	s := &Stats{TypeBreakdown: map[string]int{}}

	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(is_favorite), 0),
			COALESCE(SUM(
				LENGTH(CAST(id AS BLOB)) + LENGTH(CAST(title AS BLOB)) + LENGTH(CAST(channel AS BLOB)) +
				LENGTH(CAST(url AS BLOB)) + LENGTH(CAST(content AS BLOB)) +
				COALESCE(LENGTH(CAST(transcript AS BLOB)), 0) + COALESCE(LENGTH(CAST(tags_json AS BLOB)), 0)
			), 0)
		FROM summaries`).Scan(&s.Total, &s.Favorites, &s.StorageBytes)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	rows, err := db.QueryContext(ctx, `SELECT summary_type, COUNT(*) FROM summaries GROUP BY summary_type`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, errors.NewInternal(err)
		}
		s.TypeBreakdown[t] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return s, nil
}

// StreamAll returns rows over every summary, oldest first, for backups.
// Scan each row with ScanRecordFromRows; the caller closes rows.
func StreamAll(ctx context.Context, db *sql.DB) (*sql.Rows, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+recordColumns+` FROM summaries ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// ScanRecordFromRows scans the current row of a StreamAll result.
func ScanRecordFromRows(rows *sql.Rows) (*summary.Record, error) {
	return scanRecord(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*summary.Record, error) {
	var (
		r          summary.Record
		duration   sql.NullString
		videoID    sql.NullString
		sType      string
		transcript sql.NullString
		tagsJSON   sql.NullString
	)

	err := row.Scan(
		&r.ID, &r.Title, &r.Channel, &duration, &r.URL, &videoID, &sType,
		&r.Content, &transcript, &r.WordCount, &tagsJSON, &r.IsFavorite, &r.CreatedAt, &r.LastAccessed,
	)
	if err != nil {
		return nil, err
	}

	r.Duration = duration.String
	r.VideoID = videoID.String
	r.SummaryType = summary.Type(sType)
	r.Transcript = transcript.String
	if r.Tags, err = decodeTags(tagsJSON); err != nil {
		return nil, err
	}

	return &r, nil
}

func checkAffected(res sql.Result, err error, id string) error {
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

func encodeTags(tags []string) (sql.NullString, error) {
	if len(tags) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, errors.NewInternal(err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeTags(ns sql.NullString) ([]string, error) {
	tags := []string{}
	if !ns.Valid || ns.String == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(ns.String), &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
