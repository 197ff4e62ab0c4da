package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/domain/entity"
	"github.com/garyjia/fleetbot/internal/infrastructure/persistence/sqlite"
)

// UserLinkRepository implements port.UserLinkRepository
type UserLinkRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserLinkRepository creates a new user link repository
func NewUserLinkRepository(db *sql.DB, logger *zap.Logger) port.UserLinkRepository {
	return &UserLinkRepository{
		db:     db,
		logger: logger,
	}
}

// Link binds a chat user to a driver. A driver already linked to another user
// yields *port.ConstraintError on user_links.driver_id.
func (r *UserLinkRepository) Link(ctx context.Context, link *entity.UserLink) error {
	query := `INSERT INTO user_links (user_id, driver_id, created_at) VALUES (?, ?, ?)`

	now := time.Now().UTC()
	if _, err := executor(ctx, r.db).ExecContext(ctx, query, link.UserID, link.DriverID, now); err != nil {
		r.logger.Error("Failed to link user",
			zap.String("user_id", link.UserID),
			zap.Int64("driver_id", link.DriverID),
			zap.Error(err))
		return fmt.Errorf("failed to link user: %w", sqlite.Translate(err))
	}
	link.CreatedAt = now
	return nil
}

// GetByUserID retrieves the link of a chat user
func (r *UserLinkRepository) GetByUserID(ctx context.Context, userID string) (*entity.UserLink, error) {
	query := `SELECT user_id, driver_id, created_at FROM user_links WHERE user_id = ?`

	var link entity.UserLink
	err := executor(ctx, r.db).QueryRowContext(ctx, query, userID).Scan(&link.UserID, &link.DriverID, &link.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user link",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user link: %w", sqlite.Translate(err))
	}
	return &link, nil
}

// GetByDriverID retrieves the link of a driver
func (r *UserLinkRepository) GetByDriverID(ctx context.Context, driverID int64) (*entity.UserLink, error) {
	query := `SELECT user_id, driver_id, created_at FROM user_links WHERE driver_id = ?`

	var link entity.UserLink
	err := executor(ctx, r.db).QueryRowContext(ctx, query, driverID).Scan(&link.UserID, &link.DriverID, &link.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user link by driver",
			zap.Int64("driver_id", driverID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user link: %w", sqlite.Translate(err))
	}
	return &link, nil
}

// Unlink removes the chat user's link; unlinking an unknown user is a no-op
func (r *UserLinkRepository) Unlink(ctx context.Context, userID string) error {
	if _, err := executor(ctx, r.db).ExecContext(ctx, `DELETE FROM user_links WHERE user_id = ?`, userID); err != nil {
		r.logger.Error("Failed to unlink user",
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to unlink user: %w", sqlite.Translate(err))
	}
	return nil
}

// Verify interface compliance
var _ port.UserLinkRepository = (*UserLinkRepository)(nil)
