package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/viniciusnovato/finance-sub000/internal/models"
)

const clientColumns = `id, first_name, last_name, email, phone, tax_id, status, created_at, updated_at`

// ClientRepository handles client database operations.
type ClientRepository struct {
	db *DB
}

// NewClientRepository creates a new client repository.
func NewClientRepository(db *DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// Create inserts a new client into the database.
func (r *ClientRepository) Create(ctx context.Context, in *models.ClientCreate) (*models.Client, error) {
	query := `
		INSERT INTO clients (first_name, last_name, email, phone, tax_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING ` + clientColumns

	client, err := scanClient(r.db.QueryRowContext(ctx, query,
		strings.TrimSpace(in.FirstName),
		strings.TrimSpace(in.LastName),
		strings.TrimSpace(in.Email),
		strings.TrimSpace(in.Phone),
		strings.TrimSpace(in.TaxID),
		string(in.Status),
		time.Now().UTC(),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return client, nil
}

// BulkInsert inserts multiple clients in one transaction. Rows that fail are
// reported in the result and do not abort the batch.
func (r *ClientRepository) BulkInsert(ctx context.Context, clients []*models.ClientCreate, batchID string) (*models.BulkInsertResult, error) {
	result := &models.BulkInsertResult{
		BatchID:       batchID,
		InsertedCount: 0,
		FailedCount:   0,
		Errors:        []string{},
	}

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		for i, client := range clients {
			// Savepoint per row keeps the transaction usable after a failure
			_, err := tx.Exec(ctx, `SAVEPOINT client_row`)
			if err != nil {
				return err
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO clients (first_name, last_name, email, phone, tax_id, status, batch_id, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
				strings.TrimSpace(client.FirstName),
				strings.TrimSpace(client.LastName),
				strings.TrimSpace(client.Email),
				strings.TrimSpace(client.Phone),
				strings.TrimSpace(client.TaxID),
				string(client.Status),
				batchID,
				now,
			)

			if err != nil {
				if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT client_row`); rbErr != nil {
					return rbErr
				}
				result.FailedCount++
				result.Errors = append(result.Errors, fmt.Sprintf("row %d (%s): %v", i+1, client.FirstName, err))
			} else {
				result.InsertedCount++
			}
		}
		return nil
	})

	if err != nil {
		return result, fmt.Errorf("bulk insert failed: %w", err)
	}

	return result, nil
}

// GetByID retrieves a client by ID. It returns nil when no client exists.
func (r *ClientRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`

	client, err := scanClient(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return client, nil
}

// List returns one page of clients matching the filter and the total count.
func (r *ClientRepository) List(ctx context.Context, filter models.ClientFilter, page models.Page) ([]models.Client, int, error) {
	var where conditions
	if filter.Status != "" {
		where.add("status = $%d", string(filter.Status))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		where.add("(first_name ILIKE $%[1]d OR last_name ILIKE $%[1]d OR email ILIKE $%[1]d OR tax_id ILIKE $%[1]d)", "%"+search+"%")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count clients: %w", err)
	}

	clients, err := r.query(ctx, where, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}

	return clients, total, nil
}

// ListAll returns every client, reading past the per-query row ceiling.
func (r *ClientRepository) ListAll(ctx context.Context) ([]models.Client, error) {
	return fetchAll(ctx, func(ctx context.Context, limit, offset int) ([]models.Client, error) {
		return r.query(ctx, conditions{}, limit, offset)
	})
}

// Delete removes a client without contracts. The contract check and the
// delete run in one transaction holding the client row lock.
func (r *ClientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM clients WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.NewLedgerError(models.KindNotFound, "", id, "client not found")
		}
		if err != nil {
			return fmt.Errorf("failed to lock client: %w", err)
		}

		var contracts int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM contracts WHERE client_id = $1`, id).Scan(&contracts); err != nil {
			return fmt.Errorf("failed to count contracts: %w", err)
		}
		if contracts > 0 {
			return models.NewLedgerError(models.KindClientHasContracts, "", id,
				fmt.Sprintf("client has %d contracts", contracts))
		}

		if _, err := tx.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete client: %w", err)
		}
		return nil
	})
}

func (r *ClientRepository) query(ctx context.Context, where conditions, limit, offset int) ([]models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients` + where.sql() + ` ORDER BY created_at DESC, id` + where.limit(limit, offset)

	rows, err := r.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	clients := []models.Client{}
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, *client)
	}

	return clients, rows.Err()
}

func scanClient(row pgx.Row) (*models.Client, error) {
	var client models.Client
	var status string

	err := row.Scan(
		&client.ID,
		&client.FirstName,
		&client.LastName,
		&client.Email,
		&client.Phone,
		&client.TaxID,
		&status,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	client.Status = models.ClientStatus(status)
	return &client, nil
}
