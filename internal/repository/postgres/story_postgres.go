package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonboulle/clockwork"

	"storyapi/internal/errs"
	"storyapi/internal/model"
	"storyapi/internal/repository"
)

const pgUniqueViolation = "23505"

var storyColumns = []string{
	"s.id",
	"s.author_id",
	"s.content_url",
	"s.storage_path",
	"s.content_type",
	"s.caption",
	"s.created_at",
	"s.expires_at",
	"s.view_count",
}

// StoryPostgres is a PostgreSQL implementation of repository.StoryRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type StoryPostgres struct {
	db    *sql.DB
	clock clockwork.Clock
}

// NewStoryPostgres creates a new StoryPostgres repository. The clock decides
// which stories are still active.
func NewStoryPostgres(db *sql.DB, clock clockwork.Clock) *StoryPostgres {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StoryPostgres{db: db, clock: clock}
}

var _ repository.StoryRepository = (*StoryPostgres)(nil)

// FetchActiveStories returns unexpired stories with author meta, newest first.
func (r *StoryPostgres) FetchActiveStories(ctx context.Context) ([]model.Story, error) {
	const op = "repository.FetchActiveStories"

	q, args, err := repository.SqBuilder.
		Select(append(storyColumns, "p.display_name", "p.avatar_url")...).
		From("stories s").
		Join("profiles p ON p.user_id = s.author_id").
		Where(sq.Gt{"s.expires_at": r.clock.Now().UTC()}).
		OrderBy("s.created_at DESC", "s.id DESC").
		ToSql()
	if err != nil {
		return nil, errs.Persistence(op, err)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.Persistence(op, err)
	}
	defer rows.Close()

	stories := make([]model.Story, 0)
	for rows.Next() {
		var s model.Story
		var contentType string
		if err := rows.Scan(
			&s.ID,
			&s.AuthorID,
			&s.ContentURL,
			&s.StoragePath,
			&contentType,
			&s.Caption,
			&s.CreatedAt,
			&s.ExpiresAt,
			&s.ViewCount,
			&s.DisplayName,
			&s.AvatarURL,
		); err != nil {
			return nil, errs.Persistence(op, err)
		}
		s.ContentType = model.ContentType(contentType)
		stories = append(stories, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence(op, err)
	}
	return stories, nil
}

// FetchViewedIDs returns the set of story ids viewerID has viewed.
func (r *StoryPostgres) FetchViewedIDs(ctx context.Context, viewerID string) (map[string]struct{}, error) {
	const op = "repository.FetchViewedIDs"

	q, args, err := repository.SqBuilder.
		Select("story_id").
		From("story_views").
		Where(sq.Eq{"viewer_id": viewerID}).
		ToSql()
	if err != nil {
		return nil, errs.Persistence(op, err)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.Persistence(op, err)
	}
	defer rows.Close()

	viewed := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Persistence(op, err)
		}
		viewed[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence(op, err)
	}
	return viewed, nil
}

// FetchStory returns one unexpired story with author meta, or nil when there is none.
func (r *StoryPostgres) FetchStory(ctx context.Context, id string) (*model.Story, error) {
	const op = "repository.FetchStory"

	q, args, err := repository.SqBuilder.
		Select(append(storyColumns, "p.display_name", "p.avatar_url")...).
		From("stories s").
		Join("profiles p ON p.user_id = s.author_id").
		Where(sq.Eq{"s.id": id}).
		Where(sq.Gt{"s.expires_at": r.clock.Now().UTC()}).
		ToSql()
	if err != nil {
		return nil, errs.Persistence(op, err)
	}

	var s model.Story
	var contentType string
	err = r.db.QueryRowContext(ctx, q, args...).Scan(
		&s.ID,
		&s.AuthorID,
		&s.ContentURL,
		&s.StoragePath,
		&contentType,
		&s.Caption,
		&s.CreatedAt,
		&s.ExpiresAt,
		&s.ViewCount,
		&s.DisplayName,
		&s.AvatarURL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence(op, err)
	}
	s.ContentType = model.ContentType(contentType)
	return &s, nil
}

// recordViewSQL inserts the view record and increments view_count in one
// statement. The counter only moves when the insert produced a row.
const recordViewSQL = `
	WITH inserted AS (
		INSERT INTO story_views (story_id, viewer_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (story_id, viewer_id) DO NOTHING
		RETURNING story_id
	)
	UPDATE stories SET view_count = view_count + 1
	WHERE id IN (SELECT story_id FROM inserted)
`

// RecordView records a view at most once per (storyID, viewerID).
func (r *StoryPostgres) RecordView(ctx context.Context, storyID, viewerID string) (bool, error) {
	const op = "repository.RecordView"

	res, err := r.db.ExecContext(ctx, recordViewSQL, storyID, viewerID, r.clock.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, errs.Persistence(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errs.Persistence(op, err)
	}
	return n > 0, nil
}

// CreateStory inserts a new story row and returns the stored record.
func (r *StoryPostgres) CreateStory(ctx context.Context, story *model.Story) (*model.Story, error) {
	const op = "repository.CreateStory"

	q, args, err := repository.SqBuilder.
		Insert("stories").
		Columns("id", "author_id", "content_url", "storage_path", "content_type", "caption", "created_at", "expires_at", "view_count").
		Values(
			story.ID,
			story.AuthorID,
			story.ContentURL,
			story.StoragePath,
			string(story.ContentType),
			story.Caption,
			story.CreatedAt,
			story.ExpiresAt,
			story.ViewCount,
		).
		Suffix("RETURNING id, author_id, content_url, storage_path, content_type, caption, created_at, expires_at, view_count").
		ToSql()
	if err != nil {
		return nil, errs.Persistence(op, err)
	}

	var out model.Story
	var contentType string
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(
		&out.ID,
		&out.AuthorID,
		&out.ContentURL,
		&out.StoragePath,
		&contentType,
		&out.Caption,
		&out.CreatedAt,
		&out.ExpiresAt,
		&out.ViewCount,
	); err != nil {
		return nil, errs.Persistence(op, err)
	}
	out.ContentType = model.ContentType(contentType)
	out.DisplayName = story.DisplayName
	out.AvatarURL = story.AvatarURL
	return &out, nil
}

// ListExpired returns up to limit stories that expired at or before before.
func (r *StoryPostgres) ListExpired(ctx context.Context, before time.Time, limit int) ([]model.Story, error) {
	const op = "repository.ListExpired"

	b := repository.SqBuilder.
		Select(storyColumns...).
		From("stories s").
		Where(sq.LtOrEq{"s.expires_at": before}).
		OrderBy("s.expires_at ASC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, errs.Persistence(op, err)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.Persistence(op, err)
	}
	defer rows.Close()

	stories := make([]model.Story, 0)
	for rows.Next() {
		var s model.Story
		var contentType string
		if err := rows.Scan(
			&s.ID,
			&s.AuthorID,
			&s.ContentURL,
			&s.StoragePath,
			&contentType,
			&s.Caption,
			&s.CreatedAt,
			&s.ExpiresAt,
			&s.ViewCount,
		); err != nil {
			return nil, errs.Persistence(op, err)
		}
		s.ContentType = model.ContentType(contentType)
		stories = append(stories, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence(op, err)
	}
	return stories, nil
}

// DeleteStories removes story rows by id. View records go with them via ON DELETE CASCADE.
func (r *StoryPostgres) DeleteStories(ctx context.Context, ids []string) (int64, error) {
	const op = "repository.DeleteStories"
	if len(ids) == 0 {
		return 0, nil
	}

	q, args, err := repository.SqBuilder.
		Delete("stories").
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return 0, errs.Persistence(op, err)
	}

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errs.Persistence(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errs.Persistence(op, err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
