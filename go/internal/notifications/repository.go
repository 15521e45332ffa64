package notifications

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/studybuddy/go/internal/models"
	"github.com/mcdev12/studybuddy/go/internal/sqlutil"
)

// Schema creates the notifications table.
const Schema = `
CREATE TABLE IF NOT EXISTS notifications (
    id                BIGSERIAL PRIMARY KEY,
    user_id           BIGINT      NOT NULL,
    notification_type TEXT        NOT NULL,
    title             TEXT        NOT NULL,
    message           TEXT        NOT NULL,
    related_group_id  BIGINT      NULL,
    extra_data        JSONB       NULL,
    is_read           BOOLEAN     NOT NULL DEFAULT FALSE,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS notifications_user_unread_idx ON notifications (user_id) WHERE NOT is_read;
`

// retainPerUser bounds the rows kept for one user.
const retainPerUser = 500

// PostgresRepository stores notifications with database/sql and lib/pq.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repository over db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the notifications table if needed.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate notifications: %w", err)
	}
	return nil
}

// Create inserts n and trims the user's oldest rows beyond the retention
// limit in the same transaction.
func (r *PostgresRepository) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	created := *n
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
            INSERT INTO notifications (user_id, notification_type, title, message, related_group_id, extra_data)
            VALUES ($1, $2, $3, $4, $5, $6)
            RETURNING id, is_read, created_at
        `,
			n.UserID, string(n.Kind), n.Title, n.Message,
			sqlutil.ToSqlInt64(n.GroupID), sqlutil.ToNullRawMessage(n.ExtraData),
		).Scan(&created.ID, &created.IsRead, &created.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
            DELETE FROM notifications
            WHERE user_id = $1 AND id IN (
                SELECT id FROM notifications WHERE user_id = $1
                ORDER BY created_at DESC, id DESC
                OFFSET $2
            )
        `, n.UserID, retainPerUser)
		if err != nil {
			return fmt.Errorf("trim notifications: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *PostgresRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read
    `, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, user_id, notification_type, title, message, related_group_id, extra_data, is_read, created_at
        FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var (
			n       models.Notification
			kind    string
			groupID sql.NullInt64
			extra   pqtype.NullRawMessage
		)
		if err := rows.Scan(&n.ID, &n.UserID, &kind, &n.Title, &n.Message, &groupID, &extra, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Kind = models.NotificationKind(kind)
		n.GroupID = sqlutil.FromSqlInt64(groupID)
		n.ExtraData = sqlutil.FromNullRawMessage(extra)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) MarkRead(ctx context.Context, userID, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2 AND NOT is_read
    `, id, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read
    `, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}
