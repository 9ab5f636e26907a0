package postgres

import (
	"boardgate/internal/models"
	"boardgate/internal/repository"
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type boardRepository struct {
	repository.BaseRepository
}

// NewBoardRepository creates a Postgres-backed board repository
func NewBoardRepository(db *sql.DB) repository.BoardRepository {
	return &boardRepository{BaseRepository: repository.NewBaseRepository(db)}
}

func (r *boardRepository) GetBoardByKey(ctx context.Context, key string) (*models.Board, error) {
	var b models.Board
	err := r.DB().QueryRowContext(ctx,
		`SELECT id, key, title, created_at FROM boards WHERE key = $1`, key,
	).Scan(&b.ID, &b.Key, &b.Title, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *boardRepository) CreateBoard(ctx context.Context, board *models.Board) error {
	if board.ID == uuid.Nil {
		board.ID = uuid.New()
	}

	err := r.DB().QueryRowContext(ctx,
		`INSERT INTO boards (id, key, title) VALUES ($1, $2, $3) RETURNING created_at`,
		board.ID, board.Key, board.Title,
	).Scan(&board.CreatedAt)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return repository.ErrDuplicate
	}
	return err
}

func (r *boardRepository) CreateThread(ctx context.Context, thread *models.Thread, first *models.Comment) error {
	if thread.ID == uuid.Nil {
		thread.ID = uuid.New()
	}
	if first.ID == uuid.Nil {
		first.ID = uuid.New()
	}
	first.ThreadID = thread.ID

	// Thread and its opening comment are one unit: a thread without a first
	// post is unrepresentable to legacy clients.
	return r.Transaction(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO threads (id, board_id, thread_key, title, author_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at`,
			thread.ID, thread.BoardID, thread.ThreadKey, thread.Title, thread.AuthorID,
		).Scan(&thread.CreatedAt)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				return repository.ErrDuplicate
			}
			return err
		}

		return tx.QueryRowContext(ctx, `
			INSERT INTO comments (id, thread_id, author_id, name, mail, display_id, body)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at`,
			first.ID, first.ThreadID, first.AuthorID, first.Name, first.Mail, first.DisplayID, first.Body,
		).Scan(&first.CreatedAt)
	})
}

func (r *boardRepository) GetThreadByKey(ctx context.Context, boardID uuid.UUID, threadKey int64) (*models.Thread, error) {
	var t models.Thread
	err := r.DB().QueryRowContext(ctx, `
		SELECT id, board_id, thread_key, title, author_id, created_at
		FROM threads WHERE board_id = $1 AND thread_key = $2`,
		boardID, threadKey,
	).Scan(&t.ID, &t.BoardID, &t.ThreadKey, &t.Title, &t.AuthorID, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *boardRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}

	return r.DB().QueryRowContext(ctx, `
		INSERT INTO comments (id, thread_id, author_id, name, mail, display_id, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		comment.ID, comment.ThreadID, comment.AuthorID, comment.Name, comment.Mail, comment.DisplayID, comment.Body,
	).Scan(&comment.CreatedAt)
}
