package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/approval"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/database"
)

const approvalColumns = `
	r.id, r.record_id, r.requester_id, r.workplace_id, r.request_type, r.reasons, r.note,
	r.status, r.resolved_by, r.resolved_at, r.resolution_note, r.auto_approved,
	r.submitted_at, r.created_at, r.updated_at,
	u.name AS requester_name`

type approvalRepository struct {
	db database.Querier
}

func NewApprovalRepository(db database.Querier) approval.ApprovalRepository {
	return &approvalRepository{db: db}
}

func scanApproval(row pgx.Row) (approval.ApprovalRequest, error) {
	var req approval.ApprovalRequest
	err := row.Scan(
		&req.ID, &req.RecordID, &req.RequesterID, &req.WorkplaceID, &req.Type, &req.Reasons, &req.Note,
		&req.Status, &req.ResolvedBy, &req.ResolvedAt, &req.ResolutionNote, &req.AutoApproved,
		&req.SubmittedAt, &req.CreatedAt, &req.UpdatedAt,
		&req.RequesterName,
	)
	if err != nil {
		return approval.ApprovalRequest{}, err
	}
	return req, nil
}

// Create implements approval.ApprovalRepository.
func (a *approvalRepository) Create(ctx context.Context, req approval.ApprovalRequest) (approval.ApprovalRequest, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		INSERT INTO approval_requests (
			record_id, requester_id, workplace_id, request_type, reasons, note, status,
			resolved_by, resolved_at, resolution_note, auto_approved, submitted_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		) RETURNING id, created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		req.RecordID,
		req.RequesterID,
		req.WorkplaceID,
		req.Type,
		req.Reasons,
		req.Note,
		req.Status,
		req.ResolvedBy,
		req.ResolvedAt,
		req.ResolutionNote,
		req.AutoApproved,
		req.SubmittedAt,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)

	if err != nil {
		// The partial unique index on pending requests rejects a second open
		// request for the same record.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return approval.ApprovalRequest{}, approval.ErrRequestAlreadyOpen
		}
		return approval.ApprovalRequest{}, fmt.Errorf("failed to create approval request: %w", err)
	}

	return req, nil
}

// GetByID implements approval.ApprovalRepository.
func (a *approvalRepository) GetByID(ctx context.Context, id string) (approval.ApprovalRequest, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + approvalColumns + `
		FROM approval_requests r
		LEFT JOIN users u ON u.id = r.requester_id
		WHERE r.id = $1
	`

	req, err := scanApproval(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return approval.ApprovalRequest{}, approval.ErrRequestNotFound
		}
		return approval.ApprovalRequest{}, fmt.Errorf("failed to get approval request: %w", err)
	}

	return req, nil
}

// Resolve implements approval.ApprovalRepository.
//
// The status guard in the WHERE clause is the compare-and-set: of two
// concurrent resolvers exactly one matches the pending row, the other
// falls through to the not-found branch and is told the request was
// already resolved.
func (a *approvalRepository) Resolve(ctx context.Context, id string, status approval.Status, resolvedBy string, note *string, resolvedAt time.Time) (approval.ApprovalRequest, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		UPDATE approval_requests SET
			status = $1,
			resolved_by = $2,
			resolution_note = $3,
			resolved_at = $4,
			updated_at = $4
		WHERE id = $5
		  AND status = 'pending'
		RETURNING id
	`

	var resolvedID string
	err := q.QueryRow(ctx, query, status, resolvedBy, note, resolvedAt, id).Scan(&resolvedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the request never existed or it already left pending.
			if _, getErr := a.GetByID(ctx, id); getErr == nil {
				return approval.ApprovalRequest{}, approval.ErrRequestAlreadyResolved
			}
			return approval.ApprovalRequest{}, approval.ErrRequestNotFound
		}
		return approval.ApprovalRequest{}, fmt.Errorf("failed to resolve approval request: %w", err)
	}

	return a.GetByID(ctx, resolvedID)
}

// ListByWorkplace implements approval.ApprovalRepository.
func (a *approvalRepository) ListByWorkplace(ctx context.Context, workplaceID string, filter approval.ApprovalFilter) ([]approval.ApprovalRequest, int64, error) {
	return a.list(ctx, "r.workplace_id = $1", workplaceID, filter)
}

// ListByRequester implements approval.ApprovalRepository.
func (a *approvalRepository) ListByRequester(ctx context.Context, requesterID string, filter approval.ApprovalFilter) ([]approval.ApprovalRequest, int64, error) {
	return a.list(ctx, "r.requester_id = $1", requesterID, filter)
}

func (a *approvalRepository) list(ctx context.Context, scope string, scopeArg string, filter approval.ApprovalFilter) ([]approval.ApprovalRequest, int64, error) {
	q := GetQuerier(ctx, a.db)

	baseWhere := scope
	args := []interface{}{scopeArg}
	argIdx := 2

	if filter.Status != nil && *filter.Status != "" {
		baseWhere += fmt.Sprintf(" AND r.status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}

	countQuery := "SELECT COUNT(*) FROM approval_requests r WHERE " + baseWhere
	var total int64
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count approval requests: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM approval_requests r
		LEFT JOIN users u ON u.id = r.requester_id
		WHERE %s
		ORDER BY r.submitted_at DESC
		LIMIT $%d OFFSET $%d
	`, approvalColumns, baseWhere, argIdx, argIdx+1)

	limit := filter.Limit
	if limit == 0 {
		limit = 20
	}
	offset := (filter.Page - 1) * limit
	args = append(args, limit, offset)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query approval requests: %w", err)
	}
	defer rows.Close()

	var requests []approval.ApprovalRequest
	for rows.Next() {
		req, err := scanApproval(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan approval request: %w", err)
		}
		requests = append(requests, req)
	}

	return requests, total, nil
}

// ListPendingOlderThan implements approval.ApprovalRepository.
func (a *approvalRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]approval.ApprovalRequest, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + approvalColumns + `
		FROM approval_requests r
		LEFT JOIN users u ON u.id = r.requester_id
		WHERE r.status = 'pending'
		  AND r.submitted_at < $1
		ORDER BY r.submitted_at ASC
	`

	rows, err := q.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue approval requests: %w", err)
	}
	defer rows.Close()

	var requests []approval.ApprovalRequest
	for rows.Next() {
		req, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval request: %w", err)
		}
		requests = append(requests, req)
	}

	return requests, nil
}
