package repository

import (
	"boardgate/internal/models"
	"context"

	"github.com/google/uuid"
)

// BoardRepository provides the minimal board/thread/comment CRUD the legacy
// gateway forwards to once the anti-abuse checks pass.
type BoardRepository interface {
	GetBoardByKey(ctx context.Context, key string) (*models.Board, error)
	CreateBoard(ctx context.Context, board *models.Board) error
	CreateThread(ctx context.Context, thread *models.Thread, first *models.Comment) error
	GetThreadByKey(ctx context.Context, boardID uuid.UUID, threadKey int64) (*models.Thread, error)
	CreateComment(ctx context.Context, comment *models.Comment) error
}

// BanRepository answers whether any of an actor's permanent identity hashes
// are covered by an active ban.
type BanRepository interface {
	IsBanned(ctx context.Context, userHash, ipHash, deviceHash string) (bool, error)
}
