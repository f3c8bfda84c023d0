package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	adminauth "github.com/mtp-sa/adminauth"
	"github.com/mtp-sa/adminauth/role"
)

const schema = `
CREATE TABLE IF NOT EXISTS admin_users (
    id            UUID PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    name          TEXT NOT NULL DEFAULT '',
    role          TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    is_active     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id         BIGSERIAL PRIMARY KEY,
    email      TEXT NOT NULL,
    success    BOOLEAN NOT NULL,
    ip         TEXT NOT NULL DEFAULT '',
    user_agent TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS admin_login_attempts_email_idx
    ON admin_login_attempts (email, created_at);
`

// Provider is a PostgreSQL-backed PrincipalProvider and AttemptRecorder.
// Email lookups match the stored identifier exactly.
type Provider struct {
	db *sql.DB
}

// Open connects via the pgx stdlib driver and pings the database.
func Open(ctx context.Context, dsn string) (*Provider, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", adminauth.ErrStoreUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", adminauth.ErrStoreUnavailable, err)
	}
	return &Provider{db: db}, nil
}

// NewProvider wraps an existing connection pool.
func NewProvider(db *sql.DB) *Provider {
	return &Provider{db: db}
}

// Close releases the connection pool.
func (p *Provider) Close() error {
	return p.db.Close()
}

// Migrate creates the admin tables if they do not exist.
func (p *Provider) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: %v", adminauth.ErrStoreUnavailable, err)
	}
	return nil
}

func (p *Provider) GetByEmail(ctx context.Context, email string) (adminauth.Principal, error) {
	return p.scanPrincipal(p.db.QueryRowContext(ctx,
		`SELECT id, email, name, role, password_hash, is_active
		   FROM admin_users
		  WHERE email = $1`,
		email,
	))
}

func (p *Provider) GetByID(ctx context.Context, id string) (adminauth.Principal, error) {
	return p.scanPrincipal(p.db.QueryRowContext(ctx,
		`SELECT id, email, name, role, password_hash, is_active
		   FROM admin_users
		  WHERE id = $1`,
		id,
	))
}

func (p *Provider) scanPrincipal(row *sql.Row) (adminauth.Principal, error) {
	var principal adminauth.Principal
	var roleName string

	err := row.Scan(
		&principal.ID,
		&principal.Email,
		&principal.Name,
		&roleName,
		&principal.PasswordHash,
		&principal.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return adminauth.Principal{}, adminauth.ErrPrincipalNotFound
		}
		return adminauth.Principal{}, fmt.Errorf("%w: %v", adminauth.ErrStoreUnavailable, err)
	}

	// An unknown role in the row ranks as zero downstream; it is stored
	// as-is rather than rejected here.
	principal.Role = role.Role(roleName)
	return principal, nil
}

func (p *Provider) UpdatePasswordHash(ctx context.Context, id, newHash string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE admin_users
		    SET password_hash = $2, updated_at = now()
		  WHERE id = $1`,
		id, newHash,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", adminauth.ErrStoreUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", adminauth.ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return adminauth.ErrPrincipalNotFound
	}
	return nil
}

// CreatePrincipal inserts a new admin user and returns its generated ID.
// Provisioning is an operator action, not part of the request path.
func (p *Provider) CreatePrincipal(ctx context.Context, email, name string, r role.Role, passwordHash string, active bool) (string, error) {
	if !r.Known() {
		return "", role.ErrUnknownRole
	}

	id := uuid.NewString()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO admin_users (id, email, name, role, password_hash, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, email, name, string(r), passwordHash, active,
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", adminauth.ErrStoreUnavailable, err)
	}
	return id, nil
}

// SetActive toggles a principal's activation flag. The session layer notices
// on the next guarded request.
func (p *Provider) SetActive(ctx context.Context, id string, active bool) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE admin_users
		    SET is_active = $2, updated_at = now()
		  WHERE id = $1`,
		id, active,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", adminauth.ErrStoreUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", adminauth.ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return adminauth.ErrPrincipalNotFound
	}
	return nil
}

func (p *Provider) RecordAttempt(ctx context.Context, attempt adminauth.LoginAttempt) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO admin_login_attempts (email, success, ip, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		attempt.Email, attempt.Success, attempt.IP, attempt.UserAgent, attempt.At,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", adminauth.ErrStoreUnavailable, err)
	}
	return nil
}
