// Package tenant persists the per-installation auth data the app needs to
// call back into each tenant's Saleor instance.
package tenant

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// AuthData is one installed tenant: the Saleor API URL identifies the
// installation, the token authorizes metadata calls against it.
type AuthData struct {
	SaleorAPIURL string    `json:"saleor_api_url"`
	Token        string    `json:"-"`
	AppID        string    `json:"app_id"`
	Domain       string    `json:"domain,omitempty"`
	InstalledAt  time.Time `json:"installed_at"`
}

type Store struct {
	conn *sql.DB
}

func NewStore(connectionString string) (*Store, error) {
	conn, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	return &Store{conn: conn}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) Ping() error {
	return s.conn.Ping()
}

// EnsureSchema creates the tenants table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS tenants (
			saleor_api_url TEXT PRIMARY KEY,
			token          TEXT NOT NULL,
			app_id         TEXT NOT NULL,
			domain         TEXT NOT NULL DEFAULT '',
			installed_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`

	_, err := s.conn.ExecContext(ctx, query)
	return err
}

// Save registers or re-registers a tenant; reinstalling updates the token
// and app id in place.
func (s *Store) Save(ctx context.Context, auth *AuthData) error {
	query := `
		INSERT INTO tenants (saleor_api_url, token, app_id, domain, installed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (saleor_api_url) DO UPDATE
		SET token = EXCLUDED.token, app_id = EXCLUDED.app_id, domain = EXCLUDED.domain`

	_, err := s.conn.ExecContext(ctx, query,
		auth.SaleorAPIURL, auth.Token, auth.AppID, auth.Domain, time.Now(),
	)
	return err
}

func (s *Store) Get(ctx context.Context, saleorAPIURL string) (*AuthData, error) {
	query := `
		SELECT saleor_api_url, token, app_id, domain, installed_at
		FROM tenants WHERE saleor_api_url = $1`

	var auth AuthData
	err := s.conn.QueryRowContext(ctx, query, saleorAPIURL).Scan(
		&auth.SaleorAPIURL, &auth.Token, &auth.AppID, &auth.Domain, &auth.InstalledAt,
	)
	if err != nil {
		return nil, err
	}

	return &auth, nil
}

func (s *Store) Delete(ctx context.Context, saleorAPIURL string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM tenants WHERE saleor_api_url = $1`, saleorAPIURL)
	return err
}

// List returns every installed tenant, ordered by installation time. Used by
// the migration pass that walks all tenants.
func (s *Store) List(ctx context.Context) ([]AuthData, error) {
	query := `
		SELECT saleor_api_url, token, app_id, domain, installed_at
		FROM tenants ORDER BY installed_at`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []AuthData
	for rows.Next() {
		var auth AuthData
		if err := rows.Scan(&auth.SaleorAPIURL, &auth.Token, &auth.AppID, &auth.Domain, &auth.InstalledAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, auth)
	}

	return tenants, rows.Err()
}
