package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/moacode/craft-fab-permissions/internal/entities"
	"github.com/moacode/craft-fab-permissions/internal/repositories"
)

// PostgresGrantRepository implements GrantRepository using PostgreSQL
type PostgresGrantRepository struct {
	db *sql.DB
}

// NewPostgresGrantRepository creates a new PostgreSQL grant repository
func NewPostgresGrantRepository(db *sql.DB) repositories.GrantRepository {
	return &PostgresGrantRepository{db: db}
}

// Upsert inserts the grant or fully replaces the row with the same UID.
func (r *PostgresGrantRepository) Upsert(ctx context.Context, grant *entities.Grant) error {
	if err := grant.Validate(); err != nil {
		return fmt.Errorf("invalid grant: %w", err)
	}

	query := `
		INSERT INTO fab_permissions (
			uid, layout_id, tab_name, field_id, site_id, group_id,
			can_view, can_edit, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (uid) DO UPDATE SET
			layout_id = EXCLUDED.layout_id,
			tab_name = EXCLUDED.tab_name,
			field_id = EXCLUDED.field_id,
			site_id = EXCLUDED.site_id,
			group_id = EXCLUDED.group_id,
			can_view = EXCLUDED.can_view,
			can_edit = EXCLUDED.can_edit,
			updated_at = EXCLUDED.updated_at
	`
	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		grant.UID, grant.LayoutID,
		nullString(grant.TabName), nullInt64(grant.FieldID),
		grant.SiteID, nullInt64(grant.GroupID),
		grant.CanView, grant.CanEdit, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert grant: %w", err)
	}

	return nil
}

// DeleteByUID removes the grant with the given UID; no-op if absent.
func (r *PostgresGrantRepository) DeleteByUID(ctx context.Context, uid string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM fab_permissions WHERE uid = $1`, uid)
	if err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}
	return nil
}

// GetByUID retrieves a grant by UID, or nil if no such grant exists.
func (r *PostgresGrantRepository) GetByUID(ctx context.Context, uid string) (*entities.Grant, error) {
	query := `
		SELECT id, uid, layout_id, tab_name, field_id, site_id, group_id,
			can_view, can_edit, created_at, updated_at
		FROM fab_permissions
		WHERE uid = $1
	`
	grant, err := scanGrant(r.db.QueryRowContext(ctx, query, uid))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grant by UID: %w", err)
	}
	return grant, nil
}

// UIDByID returns the UID of the grant with the given surrogate row ID.
func (r *PostgresGrantRepository) UIDByID(ctx context.Context, id int64) (string, error) {
	var uid string
	err := r.db.QueryRowContext(ctx, `SELECT uid FROM fab_permissions WHERE id = $1`, id).Scan(&uid)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get grant UID by ID: %w", err)
	}
	return uid, nil
}

// List retrieves grants matching the filter.
func (r *PostgresGrantRepository) List(ctx context.Context, filter *repositories.GrantFilter) ([]*entities.Grant, error) {
	query := `
		SELECT id, uid, layout_id, tab_name, field_id, site_id, group_id,
			can_view, can_edit, created_at, updated_at
		FROM fab_permissions
	`
	where, args := buildFilter(filter)
	query += where + " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []*entities.Grant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, grant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grants: %w", err)
	}

	return grants, nil
}

// ListUIDs retrieves the UIDs of grants matching the filter.
func (r *PostgresGrantRepository) ListUIDs(ctx context.Context, filter *repositories.GrantFilter) ([]string, error) {
	query := `SELECT uid FROM fab_permissions`
	where, args := buildFilter(filter)
	query += where + " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list grant UIDs: %w", err)
	}
	defer rows.Close()

	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("failed to scan grant UID: %w", err)
		}
		uids = append(uids, uid)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grant UIDs: %w", err)
	}

	return uids, nil
}

// StaleUIDs returns the UIDs of the layout's grants that are not in keep.
func (r *PostgresGrantRepository) StaleUIDs(ctx context.Context, layoutID int64, keep []string) ([]string, error) {
	query := `SELECT uid FROM fab_permissions WHERE layout_id = $1 AND NOT (uid = ANY($2)) ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, layoutID, pq.Array(keep))
	if err != nil {
		return nil, fmt.Errorf("failed to list stale grant UIDs: %w", err)
	}
	defer rows.Close()

	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("failed to scan stale grant UID: %w", err)
		}
		uids = append(uids, uid)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stale grant UIDs: %w", err)
	}

	return uids, nil
}

// buildFilter builds a parameterized WHERE clause from the filter.
func buildFilter(filter *repositories.GrantFilter) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}

	where := ""
	var args []interface{}
	argIdx := 1

	and := func(clause string) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
	}

	if filter.LayoutID != 0 {
		and(fmt.Sprintf("layout_id = $%d", argIdx))
		args = append(args, filter.LayoutID)
		argIdx++
	}
	if filter.SiteID != 0 {
		and(fmt.Sprintf("site_id = $%d", argIdx))
		args = append(args, filter.SiteID)
		argIdx++
	}
	if filter.TabName != "" {
		and(fmt.Sprintf("tab_name = $%d", argIdx))
		args = append(args, filter.TabName)
		argIdx++
	}
	if filter.FieldID != 0 {
		and(fmt.Sprintf("field_id = $%d", argIdx))
		args = append(args, filter.FieldID)
		argIdx++
	}
	if filter.GroupID != 0 {
		and(fmt.Sprintf("group_id = $%d", argIdx))
		args = append(args, filter.GroupID)
		argIdx++
	}
	if filter.TabsOnly {
		and("field_id IS NULL")
	}
	if filter.FieldsOnly {
		and("tab_name IS NULL")
	}

	return where, args
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGrant(row rowScanner) (*entities.Grant, error) {
	var grant entities.Grant
	var tabName sql.NullString
	var fieldID, groupID sql.NullInt64

	err := row.Scan(
		&grant.ID, &grant.UID, &grant.LayoutID,
		&tabName, &fieldID, &grant.SiteID, &groupID,
		&grant.CanView, &grant.CanEdit,
		&grant.CreatedAt, &grant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if tabName.Valid {
		grant.TabName = &tabName.String
	}
	if fieldID.Valid {
		grant.FieldID = &fieldID.Int64
	}
	if groupID.Valid {
		grant.GroupID = &groupID.Int64
	}

	return &grant, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}
