package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresRepository implements ClientRepository using PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new client
func (r *PostgresRepository) Create(ctx context.Context, client *Client) error {
	client.ID = uuid.New().String()

	query := `
		INSERT INTO api_clients (id, name, secret_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		client.ID,
		client.Name,
		client.SecretHash,
		client.CreatedAt,
		client.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	return nil
}

// GetByID retrieves a client by ID
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Client, error) {
	return r.getOne(ctx, "id", id)
}

// GetByName retrieves a client by its unique name
func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*Client, error) {
	return r.getOne(ctx, "name", name)
}

func (r *PostgresRepository) getOne(ctx context.Context, column, value string) (*Client, error) {
	query := `
		SELECT id, name, secret_hash, created_at, updated_at
		FROM api_clients
		WHERE ` + column + ` = $1
	`

	client := &Client{}
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&client.ID,
		&client.Name,
		&client.SecretHash,
		&client.CreatedAt,
		&client.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client by %s: %w", column, err)
	}

	return client, nil
}
