package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/services/ledger"
)

const contractColumns = `id, contract_number, client_id, description, total_value, down_payment, number_of_payments,
	status, start_date, cancellation_reason, cancelled_at, completed_at, created_at, updated_at`

// maxNumberAttempts bounds the retries when two contracts race for the same number.
const maxNumberAttempts = 5

// ContractRepository handles contract database operations.
type ContractRepository struct {
	db *DB
}

// NewContractRepository creates a new contract repository.
func NewContractRepository(db *DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// Create inserts a new contract. When no contract number is given the next
// free "{year}-{NNNN}" number is allocated, retrying on collisions.
func (r *ContractRepository) Create(ctx context.Context, in *models.ContractCreate) (*models.Contract, error) {
	query := `
		INSERT INTO contracts (contract_number, client_id, description, total_value, down_payment,
			number_of_payments, status, start_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING ` + contractColumns

	now := time.Now().UTC()
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		number := in.ContractNumber
		if number == "" {
			existing, err := r.NumbersForYear(ctx, now.Year())
			if err != nil {
				return nil, err
			}
			number = ledger.NextContractNumber(now.Year(), existing)
		}

		contract, err := scanContract(r.db.QueryRowContext(ctx, query,
			number,
			in.ClientID,
			in.Description,
			in.TotalValue,
			in.DownPayment,
			in.NumberOfPayments,
			string(in.Status),
			in.StartDate,
			now,
		))
		if err == nil {
			return contract, nil
		}

		if !isUniqueViolation(err, constraintContractNumber) {
			return nil, fmt.Errorf("failed to create contract: %w", err)
		}
		if in.ContractNumber != "" {
			return nil, &models.LedgerError{
				Kind:    models.KindInvalidInput,
				Field:   "contract_number",
				Message: fmt.Sprintf("contract number %s is already in use", number),
			}
		}
	}

	return nil, fmt.Errorf("failed to allocate a contract number after %d attempts", maxNumberAttempts)
}

// NumbersForYear returns the contract numbers already issued for a year.
func (r *ContractRepository) NumbersForYear(ctx context.Context, year int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT contract_number FROM contracts WHERE contract_number LIKE $1`,
		strconv.Itoa(year)+"-%")
	if err != nil {
		return nil, fmt.Errorf("failed to query contract numbers: %w", err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return nil, fmt.Errorf("failed to scan contract number: %w", err)
		}
		numbers = append(numbers, number)
	}

	return numbers, rows.Err()
}

// GetByID retrieves a contract by ID. It returns nil when no contract exists.
func (r *ContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`

	contract, err := scanContract(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}

	return contract, nil
}

// List returns one page of contracts matching the filter and the total count.
func (r *ContractRepository) List(ctx context.Context, filter models.ContractFilter, page models.Page) ([]models.Contract, int, error) {
	where := contractConditions(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contracts`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count contracts: %w", err)
	}

	contracts, err := r.query(ctx, where, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}

	return contracts, total, nil
}

// ListAll returns every contract matching the filter, reading past the
// per-query row ceiling.
func (r *ContractRepository) ListAll(ctx context.Context, filter models.ContractFilter) ([]models.Contract, error) {
	where := contractConditions(filter)
	return fetchAll(ctx, func(ctx context.Context, limit, offset int) ([]models.Contract, error) {
		return r.query(ctx, where, limit, offset)
	})
}

// Update persists the lifecycle fields of a contract still in the expected
// status. A changed or missing row yields models.ErrStaleRecord.
func (r *ContractRepository) Update(ctx context.Context, c *models.Contract, expected models.ContractStatus) error {
	affected, err := r.db.ExecContext(ctx, `
		UPDATE contracts
		SET status = $2, description = $3, cancellation_reason = $4, cancelled_at = $5,
			completed_at = $6, updated_at = $7
		WHERE id = $1 AND status = $8`,
		c.ID,
		string(c.Status),
		c.Description,
		c.CancellationReason,
		c.CancelledAt,
		c.CompletedAt,
		c.UpdatedAt,
		string(expected),
	)
	if err != nil {
		return fmt.Errorf("failed to update contract: %w", err)
	}
	if affected == 0 {
		return models.ErrStaleRecord
	}

	return nil
}

// Delete removes a contract without payments. The payment check and the
// delete run in one transaction holding the contract row lock.
func (r *ContractRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := lockContract(ctx, tx, id); err != nil {
			return err
		}

		var payments int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE contract_id = $1`, id).Scan(&payments); err != nil {
			return fmt.Errorf("failed to count payments: %w", err)
		}
		if payments > 0 {
			return models.NewLedgerError(models.KindContractHasPayments, "", id,
				fmt.Sprintf("contract has %d payments", payments))
		}

		if _, err := tx.Exec(ctx, `DELETE FROM contracts WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete contract: %w", err)
		}
		return nil
	})
}

func (r *ContractRepository) query(ctx context.Context, where conditions, limit, offset int) ([]models.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts` + where.sql() + ` ORDER BY created_at DESC, id` + where.limit(limit, offset)

	rows, err := r.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	contracts := []models.Contract{}
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		contracts = append(contracts, *contract)
	}

	return contracts, rows.Err()
}

func contractConditions(filter models.ContractFilter) conditions {
	var where conditions
	if filter.Status != "" {
		where.add("status = $%d", string(filter.Status))
	}
	if filter.ClientID != nil {
		where.add("client_id = $%d", *filter.ClientID)
	}
	return where
}

// lockContract takes the row lock of a contract inside tx.
func lockContract(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var locked uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM contracts WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.NewLedgerError(models.KindNotFound, "", id, "contract not found")
	}
	if err != nil {
		return fmt.Errorf("failed to lock contract: %w", err)
	}
	return nil
}

func scanContract(row pgx.Row) (*models.Contract, error) {
	var contract models.Contract
	var status string

	err := row.Scan(
		&contract.ID,
		&contract.ContractNumber,
		&contract.ClientID,
		&contract.Description,
		&contract.TotalValue,
		&contract.DownPayment,
		&contract.NumberOfPayments,
		&status,
		&contract.StartDate,
		&contract.CancellationReason,
		&contract.CancelledAt,
		&contract.CompletedAt,
		&contract.CreatedAt,
		&contract.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	contract.Status = models.ContractStatus(status)
	return &contract, nil
}
