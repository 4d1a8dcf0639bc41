package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bitswalk/upenwrt/src/common/errors"
)

// OperationRepository handles operation registry queries
type OperationRepository struct {
	db *Database
}

// NewOperationRepository creates a new operation repository
func NewOperationRepository(db *Database) *OperationRepository {
	return &OperationRepository{db: db}
}

// Create inserts a new operation
func (r *OperationRepository) Create(op *Operation) error {
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	if op.Mode == "" {
		op.Mode = ModeBuild
	}
	if op.Status == "" {
		op.Status = StatusQueued
	}
	if op.State == "" {
		op.State = StateCreated
	}
	op.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO operations (id, mode, target_name, board_name, target_version,
			current_release, current_revision, packages, status, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.DB().Exec(query,
		op.ID, op.Mode, op.TargetName, op.BoardName, op.TargetVersion,
		op.CurrentRelease, op.CurrentRevision, joinList(op.Packages), op.Status, op.State, op.CreatedAt,
	)
	if err != nil {
		return errors.ErrDatabaseQuery.WithMessage("Failed to create operation").WithCause(err)
	}
	return nil
}

const selectOperationsQuery = `
	SELECT id, mode, target_name, board_name, target_version,
		current_release, current_revision, packages, install_packages,
		status, state, error_message, error_state, image_name, image_size,
		created_at, started_at, completed_at
	FROM operations
`

// GetByID retrieves an operation, or nil when it does not exist
func (r *OperationRepository) GetByID(id string) (*Operation, error) {
	row := r.db.DB().QueryRow(selectOperationsQuery+` WHERE id = ?`, id)
	op, err := scanOperation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.ErrDatabaseQuery.WithMessage("Failed to read operation").WithCause(err)
	}
	return op, nil
}

// List returns the most recent operations first. A limit <= 0 returns all.
func (r *OperationRepository) List(limit int) ([]Operation, error) {
	query := selectOperationsQuery + ` ORDER BY created_at DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.query(query, args...)
}

// ListByStatus returns operations in the given status, oldest first
func (r *OperationRepository) ListByStatus(status OperationStatus) ([]Operation, error) {
	return r.query(selectOperationsQuery+` WHERE status = ? ORDER BY created_at ASC`, status)
}

func (r *OperationRepository) query(query string, args ...interface{}) ([]Operation, error) {
	rows, err := r.db.DB().Query(query, args...)
	if err != nil {
		return nil, errors.ErrDatabaseQuery.WithMessage("Failed to list operations").WithCause(err)
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, errors.ErrDatabaseQuery.WithMessage("Failed to scan operation").WithCause(err)
		}
		ops = append(ops, *op)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.ErrDatabaseQuery.WithMessage("Failed to list operations").WithCause(err)
	}
	return ops, nil
}

// MarkStarted records that the operation got a worker slot
func (r *OperationRepository) MarkStarted(id string) error {
	return r.exec(id, `UPDATE operations SET status = ?, started_at = ? WHERE id = ?`,
		StatusRunning, time.Now().UTC(), id)
}

// UpdateState records the pipeline step the operation reached
func (r *OperationRepository) UpdateState(id string, state OperationState) error {
	return r.exec(id, `UPDATE operations SET state = ? WHERE id = ?`, state, id)
}

// SetInstallPackages records the reconciled package list
func (r *OperationRepository) SetInstallPackages(id string, packages []string) error {
	return r.exec(id, `UPDATE operations SET install_packages = ? WHERE id = ?`, joinList(packages), id)
}

// MarkCompleted marks an operation as completed. imageName is empty for list operations.
func (r *OperationRepository) MarkCompleted(id, imageName string, imageSize int64) error {
	query := `
		UPDATE operations
		SET status = ?, completed_at = ?, image_name = ?, image_size = ?, error_message = ''
		WHERE id = ?
	`
	return r.exec(id, query, StatusCompleted, time.Now().UTC(), imageName, imageSize, id)
}

// MarkFailed marks an operation as failed at the state it last reached
func (r *OperationRepository) MarkFailed(id, errorMsg string) error {
	query := `
		UPDATE operations
		SET status = ?, completed_at = ?, error_message = ?, error_state = state
		WHERE id = ?
	`
	return r.exec(id, query, StatusFailed, time.Now().UTC(), errorMsg, id)
}

// MarkCanceled marks an operation as canceled
func (r *OperationRepository) MarkCanceled(id, reason string) error {
	query := `
		UPDATE operations
		SET status = ?, completed_at = ?, error_message = ?, error_state = state
		WHERE id = ?
	`
	return r.exec(id, query, StatusCanceled, time.Now().UTC(), reason, id)
}

// PruneFinished deletes finished operations completed before cutoff
func (r *OperationRepository) PruneFinished(cutoff time.Time) (int64, error) {
	result, err := r.db.DB().Exec(
		`DELETE FROM operations WHERE status IN (?, ?, ?) AND completed_at < ?`,
		StatusCompleted, StatusFailed, StatusCanceled, cutoff.UTC(),
	)
	if err != nil {
		return 0, errors.ErrDatabaseQuery.WithMessage("Failed to prune operations").WithCause(err)
	}
	return result.RowsAffected()
}

func (r *OperationRepository) exec(id, query string, args ...interface{}) error {
	result, err := r.db.DB().Exec(query, args...)
	if err != nil {
		return errors.ErrDatabaseQuery.WithMessagef("Failed to update operation %s", id).WithCause(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return errors.ErrOperationNotFound.WithMessagef("Operation not found: %s", id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOperation(row scanner) (*Operation, error) {
	var op Operation
	var packages, installPackages, errorMsg, errorState, imageName sql.NullString
	var startedAt, completedAt sql.NullTime
	var imageSize sql.NullInt64

	err := row.Scan(
		&op.ID, &op.Mode, &op.TargetName, &op.BoardName, &op.TargetVersion,
		&op.CurrentRelease, &op.CurrentRevision, &packages, &installPackages,
		&op.Status, &op.State, &errorMsg, &errorState, &imageName, &imageSize,
		&op.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	op.Packages = splitList(packages.String)
	op.InstallPackages = splitList(installPackages.String)
	op.ErrorMessage = errorMsg.String
	op.ErrorState = OperationState(errorState.String)
	op.ImageName = imageName.String
	op.ImageSize = imageSize.Int64
	if startedAt.Valid {
		op.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		op.CompletedAt = &completedAt.Time
	}
	return &op, nil
}

// Package entries never contain whitespace, so lists are stored space-joined.
func joinList(list []string) string {
	return strings.Join(list, " ")
}

func splitList(s string) []string {
	return strings.Fields(s)
}
