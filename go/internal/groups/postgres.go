package groups

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/studybuddy/go/internal/models"
)

// PostgresOracle reads study_groups and group_members.
type PostgresOracle struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresOracle wraps a pool.
func NewPostgresOracle(pool *pgxpool.Pool) *PostgresOracle {
	return &PostgresOracle{pool: pool, timeout: 2 * time.Second}
}

func (o *PostgresOracle) Group(ctx context.Context, groupID int64) (*models.StudyGroup, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var g models.StudyGroup
	err := o.pool.QueryRow(ctx, `
        SELECT id, name, created_by, is_public
        FROM study_groups
        WHERE id = $1
    `, groupID).Scan(&g.ID, &g.Name, &g.CreatedBy, &g.IsPublic)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select study group: %w", err)
	}
	return &g, nil
}

func (o *PostgresOracle) RoleOf(ctx context.Context, userID, groupID int64) (models.Role, error) {
	g, err := o.Group(ctx, groupID)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var (
		role   string
		active bool
	)
	err = o.pool.QueryRow(ctx, `
        SELECT role, is_active
        FROM group_members
        WHERE group_id = $1 AND user_id = $2
    `, groupID, userID).Scan(&role, &active)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("select group member: %w", err)
	}
	return roleFor(g, userID, models.Role(role), active), nil
}

func (o *PostgresOracle) ActiveGroups(ctx context.Context, userID int64) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	rows, err := o.pool.Query(ctx, `
        SELECT id FROM study_groups WHERE created_by = $1
        UNION
        SELECT group_id FROM group_members WHERE user_id = $1 AND is_active
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query active groups: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect active groups: %w", err)
	}
	return ids, nil
}

func (o *PostgresOracle) ActiveMembers(ctx context.Context, groupID int64) ([]models.Membership, error) {
	g, err := o.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	rows, err := o.pool.Query(ctx, `
        SELECT user_id, role
        FROM group_members
        WHERE group_id = $1 AND is_active
        ORDER BY user_id
    `, groupID)
	if err != nil {
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer rows.Close()

	var (
		members    []models.Membership
		sawCreator bool
	)
	for rows.Next() {
		var (
			userID int64
			role   string
		)
		if err := rows.Scan(&userID, &role); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		if userID == g.CreatedBy {
			sawCreator = true
		}
		members = append(members, models.Membership{
			GroupID:  groupID,
			UserID:   userID,
			Role:     roleFor(g, userID, models.Role(role), true),
			IsActive: true,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group members: %w", err)
	}
	if !sawCreator {
		members = append(members, models.Membership{
			GroupID: groupID, UserID: g.CreatedBy, Role: models.RoleOwner, IsActive: true,
		})
	}
	return members, nil
}
