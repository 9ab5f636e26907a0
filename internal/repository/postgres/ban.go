package postgres

import (
	"boardgate/internal/repository"
	"context"
	"database/sql"
)

type banRepository struct {
	repository.BaseRepository
}

// NewBanRepository creates a Postgres-backed ban repository
func NewBanRepository(db *sql.DB) repository.BanRepository {
	return &banRepository{BaseRepository: repository.NewBaseRepository(db)}
}

func (r *banRepository) IsBanned(ctx context.Context, userHash, ipHash, deviceHash string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bans
			WHERE (expires_at IS NULL OR expires_at > NOW())
			  AND target_hash IN ($1, $2, $3)
		)`

	var banned bool
	err := r.DB().QueryRowContext(ctx, query, userHash, ipHash, deviceHash).Scan(&banned)
	return banned, err
}
