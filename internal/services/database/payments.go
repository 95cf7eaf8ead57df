package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/services/ledger"
)

const paymentColumns = `id, contract_id, installment_number, amount, due_date, status, paid_date, amount_paid,
	payment_method, notes, cancellation_reason, created_at, updated_at`

const insertPayment = `
	INSERT INTO payments (contract_id, installment_number, amount, due_date, status, payment_method, notes, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	RETURNING ` + paymentColumns

// PaymentRepository handles payment database operations.
type PaymentRepository struct {
	db *DB
}

// NewPaymentRepository creates a new payment repository.
func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a single installment.
func (r *PaymentRepository) Create(ctx context.Context, in *models.PaymentCreate) (*models.Payment, error) {
	payment, err := scanPayment(r.db.QueryRowContext(ctx, insertPayment,
		in.ContractID,
		in.InstallmentNumber,
		in.Amount,
		in.DueDate,
		string(models.PaymentStatusPending),
		string(in.PaymentMethod),
		in.Notes,
		time.Now().UTC(),
	))
	if isUniqueViolation(err, constraintInstallmentNumber) {
		return nil, &models.LedgerError{
			Kind:    models.KindInvalidInput,
			Field:   "installment_number",
			Message: fmt.Sprintf("installment %d already exists for contract", in.InstallmentNumber),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	return payment, nil
}

// InsertSchedule stores a generated schedule. The contract row is locked and
// the insert is rejected if the contract already has any payment, so two
// concurrent generations cannot both succeed.
func (r *PaymentRepository) InsertSchedule(ctx context.Context, contractID uuid.UUID, payments []models.Payment) ([]models.Payment, error) {
	stored := make([]models.Payment, 0, len(payments))

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := lockContract(ctx, tx, contractID); err != nil {
			return err
		}

		var existing int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE contract_id = $1`, contractID).Scan(&existing); err != nil {
			return fmt.Errorf("failed to count payments: %w", err)
		}
		if existing > 0 {
			return models.NewLedgerError(models.KindScheduleAlreadyExists, "", contractID,
				fmt.Sprintf("contract already has %d payments", existing))
		}

		now := time.Now().UTC()
		for _, p := range payments {
			payment, err := scanPayment(tx.QueryRow(ctx, insertPayment,
				contractID,
				p.InstallmentNumber,
				p.Amount,
				p.DueDate,
				string(p.Status),
				string(p.PaymentMethod),
				p.Notes,
				now,
			))
			if isUniqueViolation(err, constraintInstallmentNumber) {
				return models.NewLedgerError(models.KindScheduleAlreadyExists, "", contractID, "installments already exist")
			}
			if err != nil {
				return fmt.Errorf("failed to insert installment %d: %w", p.InstallmentNumber, err)
			}
			stored = append(stored, *payment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stored, nil
}

// GetByID retrieves a payment by ID. It returns nil when no payment exists.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return payment, nil
}

// List returns one page of payments matching the filter and the total count.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter, page models.Page) ([]models.Payment, int, error) {
	where := paymentConditions(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	payments, err := r.query(ctx, where, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}

	return payments, total, nil
}

// ListAll returns every payment matching the filter, reading past the
// per-query row ceiling.
func (r *PaymentRepository) ListAll(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	where := paymentConditions(filter)
	return fetchAll(ctx, func(ctx context.Context, limit, offset int) ([]models.Payment, error) {
		return r.query(ctx, where, limit, offset)
	})
}

// Update persists the lifecycle fields of a payment still in the expected
// status. A changed or missing row yields models.ErrStaleRecord.
func (r *PaymentRepository) Update(ctx context.Context, p *models.Payment, expected models.PaymentStatus) error {
	affected, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $2, paid_date = $3, amount_paid = $4, payment_method = $5, notes = $6,
			cancellation_reason = $7, updated_at = $8
		WHERE id = $1 AND status = $9`,
		p.ID,
		string(p.Status),
		p.PaidDate,
		p.AmountPaid,
		string(p.PaymentMethod),
		p.Notes,
		p.CancellationReason,
		p.UpdatedAt,
		string(expected),
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if affected == 0 {
		return models.ErrStaleRecord
	}

	return nil
}

// Delete removes an unpaid payment.
func (r *PaymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		payment, err := scanPayment(tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return models.NewLedgerError(models.KindNotFound, "", id, "payment not found")
		}
		if err != nil {
			return fmt.Errorf("failed to lock payment: %w", err)
		}

		if err := ledger.CheckPaymentDeletable(*payment); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete payment: %w", err)
		}
		return nil
	})
}

func (r *PaymentRepository) query(ctx context.Context, where conditions, limit, offset int) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments` + where.sql() +
		` ORDER BY due_date, contract_id, installment_number` + where.limit(limit, offset)

	rows, err := r.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	payments := []models.Payment{}
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *payment)
	}

	return payments, rows.Err()
}

func paymentConditions(filter models.PaymentFilter) conditions {
	var where conditions
	if filter.Status != "" {
		where.add("status = $%d", string(filter.Status))
	}
	if filter.ContractID != nil {
		where.add("contract_id = $%d", *filter.ContractID)
	}
	if filter.DueFrom != nil {
		where.add("due_date >= $%d", *filter.DueFrom)
	}
	if filter.DueTo != nil {
		where.add("due_date <= $%d", *filter.DueTo)
	}
	return where
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var payment models.Payment
	var status, method string

	err := row.Scan(
		&payment.ID,
		&payment.ContractID,
		&payment.InstallmentNumber,
		&payment.Amount,
		&payment.DueDate,
		&status,
		&payment.PaidDate,
		&payment.AmountPaid,
		&method,
		&payment.Notes,
		&payment.CancellationReason,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	payment.Status = models.PaymentStatus(status)
	payment.PaymentMethod = models.PaymentMethod(method)
	return &payment, nil
}
