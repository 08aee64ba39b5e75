package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/akirafn/commerce-gateway/internal/models"
)

// ErrTenantNotFound is returned when no eligible tenant matches a lookup.
var ErrTenantNotFound = errors.New("tenant not found")

const tenantColumns = `
        id, client_id, name, email, plan, auth_mode, status,
        site_key, api_key, api_secret, allowed_origins,
        rate_limit, daily_quota, daily_used,
        created_at, updated_at, last_login_at, last_request_at
`

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(
		&t.ID,
		&t.ClientID,
		&t.Name,
		&t.Email,
		&t.Plan,
		&t.AuthMode,
		&t.Status,
		&t.SiteKey,
		&t.APIKey,
		&t.APISecret,
		&t.AllowedOrigins,
		&t.RateLimit,
		&t.DailyQuota,
		&t.DailyUsed,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.LastLoginAt,
		&t.LastRequestAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return &t, nil
}

// FindBySiteKey resolves a site key to a tenant, restricted to tenants
// that are eligible to use the gateway (active or trial).
func (db *DB) FindBySiteKey(ctx context.Context, siteKey string) (*models.Tenant, error) {
	query := `
        SELECT ` + tenantColumns + `
        FROM tenants
        WHERE site_key = $1 AND status IN ('active', 'trial')
        LIMIT 1
    `
	return scanTenant(db.Pool.QueryRow(ctx, query, siteKey))
}

func (db *DB) GetTenantByAPIKey(ctx context.Context, apiKey string) (*models.Tenant, error) {
	query := `
        SELECT ` + tenantColumns + `
        FROM tenants
        WHERE api_key = $1
    `
	return scanTenant(db.Pool.QueryRow(ctx, query, apiKey))
}

func (db *DB) GetTenantByID(ctx context.Context, id string) (*models.Tenant, error) {
	query := `
        SELECT ` + tenantColumns + `
        FROM tenants
        WHERE id = $1
    `
	return scanTenant(db.Pool.QueryRow(ctx, query, id))
}

func (db *DB) ListTenants(ctx context.Context) ([]*models.Tenant, error) {
	query := `
        SELECT ` + tenantColumns + `
        FROM tenants
        ORDER BY created_at DESC
    `
	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (db *DB) CreateTenant(ctx context.Context, t *models.Tenant) error {
	query := `
        INSERT INTO tenants (
            id, client_id, name, email, plan, auth_mode, status,
            site_key, api_key, api_secret, allowed_origins,
            rate_limit, daily_quota
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING created_at, updated_at
    `
	return db.Pool.QueryRow(ctx, query,
		t.ID,
		t.ClientID,
		t.Name,
		t.Email,
		t.Plan,
		t.AuthMode,
		t.Status,
		t.SiteKey,
		t.APIKey,
		t.APISecret,
		t.AllowedOrigins,
		t.RateLimit,
		t.DailyQuota,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

type TenantUpdates struct {
	Name           *string   `json:"name"`
	Email          *string   `json:"email"`
	AuthMode       *string   `json:"auth_mode"`
	Status         *string   `json:"status"`
	AllowedOrigins *[]string `json:"allowed_origins"`
	RateLimit      *int      `json:"rate_limit"`
	DailyQuota     *int      `json:"daily_quota"`
}

func (db *DB) UpdateTenant(ctx context.Context, id string, updates TenantUpdates) error {
	query := `
        UPDATE tenants
        SET name            = COALESCE($2, name),
            email           = COALESCE($3, email),
            auth_mode       = COALESCE($4, auth_mode),
            status          = COALESCE($5, status),
            allowed_origins = COALESCE($6, allowed_origins),
            rate_limit      = COALESCE($7, rate_limit),
            daily_quota     = COALESCE($8, daily_quota),
            updated_at      = NOW()
        WHERE id = $1
    `
	tag, err := db.Pool.Exec(ctx, query,
		id,
		updates.Name,
		updates.Email,
		updates.AuthMode,
		updates.Status,
		updates.AllowedOrigins,
		updates.RateLimit,
		updates.DailyQuota,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (db *DB) DeleteTenant(ctx context.Context, id string) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (db *DB) RotateAPIKeys(ctx context.Context, id, apiKey, apiSecret string) error {
	query := `
        UPDATE tenants
        SET api_key = $2, api_secret = $3, updated_at = NOW()
        WHERE id = $1
    `
	tag, err := db.Pool.Exec(ctx, query, id, apiKey, apiSecret)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

// TouchLastRequest is advisory; callers may drop the error under load.
func (db *DB) TouchLastRequest(ctx context.Context, id string, at time.Time) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE tenants SET last_request_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch last_request_at: %w", err)
	}
	return nil
}

// InsertAuditLog appends one row to the durable audit log.
func (db *DB) InsertAuditLog(ctx context.Context, entry *models.AuditLog) error {
	query := `
        INSERT INTO audit_logs (
            id, client_id, request_id, request_method, request_path,
            request_headers, request_body, ip_address, user_agent, origin,
            auth_mode, site_key_used, api_key_used, success, error_message,
            created_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
    `
	_, err := db.Pool.Exec(ctx, query,
		entry.ID,
		entry.ClientID,
		entry.RequestID,
		entry.RequestMethod,
		entry.RequestPath,
		entry.RequestHeaders,
		entry.RequestBody,
		entry.IPAddress,
		entry.UserAgent,
		entry.Origin,
		entry.AuthMode,
		entry.SiteKeyUsed,
		entry.APIKeyUsed,
		entry.Success,
		entry.ErrorMessage,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// RecentAuditLogs reads the durable log for one tenant, newest first.
func (db *DB) RecentAuditLogs(ctx context.Context, clientID string, limit int) ([]*models.AuditLog, error) {
	query := `
        SELECT id, client_id, request_id, request_method, request_path,
               request_headers, request_body, ip_address, user_agent, origin,
               auth_mode, site_key_used, api_key_used, success, error_message,
               created_at
        FROM audit_logs
        WHERE client_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := db.Pool.Query(ctx, query, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.AuditLog
	for rows.Next() {
		var e models.AuditLog
		err := rows.Scan(
			&e.ID,
			&e.ClientID,
			&e.RequestID,
			&e.RequestMethod,
			&e.RequestPath,
			&e.RequestHeaders,
			&e.RequestBody,
			&e.IPAddress,
			&e.UserAgent,
			&e.Origin,
			&e.AuthMode,
			&e.SiteKeyUsed,
			&e.APIKeyUsed,
			&e.Success,
			&e.ErrorMessage,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
