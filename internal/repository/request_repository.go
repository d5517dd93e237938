package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/repair-desk/internal/domain"
)

// ErrStatusConflict indicates the storage-layer transition guard rejected an
// update because the row was no longer in an allowed source status.
var ErrStatusConflict = errors.New("request status changed concurrently")

// RequestFilter captures listing parameters for service requests.
type RequestFilter struct {
	UserID        *string
	TechnicianID  *string
	Statuses      []domain.RequestStatus
	DeviceTypes   []domain.DeviceType
	SearchTerm    *string
	SubmittedFrom *time.Time
	SubmittedTo   *time.Time
	Limit         int
	Offset        int
}

// StatusChange carries the fields persisted on a status transition.
type StatusChange struct {
	Status       domain.RequestStatus
	UpdatedAt    time.Time
	Cost         *float64
	InvoiceNotes *string
}

// RevenueSummary aggregates completed-request billing.
type RevenueSummary struct {
	CompletedCount int64
	TotalRevenue   float64
}

// RequestRepository encapsulates service request persistence.
type RequestRepository interface {
	Create(ctx context.Context, request *domain.ServiceRequest) error
	GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error)
	ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.ServiceRequest, error)
	// UpdateStatus persists a transition only when the row's current status is
	// in allowedFrom; a zero-row update on an existing row returns ErrStatusConflict.
	UpdateStatus(ctx context.Context, id string, allowedFrom []domain.RequestStatus, change StatusChange) error
	AssignTechnician(ctx context.Context, id, technicianID string, updatedAt time.Time) error
	UpdateWorkNotes(ctx context.Context, id string, notes *string, estimatedCompletion *time.Time, updatedAt time.Time) error
	Revenue(ctx context.Context) (RevenueSummary, error)
}

type requestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository instantiates the repository.
func NewRequestRepository(pool *pgxpool.Pool) RequestRepository {
	return &requestRepository{pool: pool}
}

const requestColumns = `id, user_id, customer_name, customer_email, device_type, brand, os_version,
               issue_description, error_messages, status, submitted_at, updated_at,
               technician_id, technician_notes, estimated_completion, appointment_date,
               cost, invoice_notes`

func (r *requestRepository) Create(ctx context.Context, request *domain.ServiceRequest) error {
	// The id and both timestamps are assigned by the caller so the optimistic
	// copy returned before the durable write matches the stored row exactly.
	const query = `
        INSERT INTO service_requests (id, user_id, customer_name, customer_email, device_type, brand,
            os_version, issue_description, error_messages, status, submitted_at, updated_at,
            appointment_date)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.pool.Exec(ctx, query,
		request.ID,
		request.UserID,
		request.CustomerName,
		request.CustomerEmail,
		request.DeviceType,
		request.Brand,
		request.OSVersion,
		request.IssueDescription,
		request.ErrorMessages,
		request.Status,
		request.SubmittedAt,
		request.UpdatedAt,
		request.AppointmentDate,
	)
	return err
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM service_requests WHERE id=$1`, requestColumns)
	var request domain.ServiceRequest
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&request.ID,
		&request.UserID,
		&request.CustomerName,
		&request.CustomerEmail,
		&request.DeviceType,
		&request.Brand,
		&request.OSVersion,
		&request.IssueDescription,
		&request.ErrorMessages,
		&request.Status,
		&request.SubmittedAt,
		&request.UpdatedAt,
		&request.TechnicianID,
		&request.TechnicianNotes,
		&request.EstimatedCompletion,
		&request.AppointmentDate,
		&request.Cost,
		&request.InvoiceNotes,
	); err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *requestRepository) ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.ServiceRequest, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("technician_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.DeviceTypes) > 0 {
		placeholders := make([]string, len(filter.DeviceTypes))
		for i, device := range filter.DeviceTypes {
			args = append(args, device)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("device_type IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SubmittedFrom != nil {
		args = append(args, *filter.SubmittedFrom)
		clauses = append(clauses, fmt.Sprintf("submitted_at >= $%d", len(args)))
	}
	if filter.SubmittedTo != nil {
		args = append(args, *filter.SubmittedTo)
		clauses = append(clauses, fmt.Sprintf("submitted_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(customer_name) LIKE %s OR LOWER(issue_description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM service_requests WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		requestColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (r *requestRepository) UpdateStatus(ctx context.Context, id string, allowedFrom []domain.RequestStatus, change StatusChange) error {
	const query = `
        UPDATE service_requests
        SET status=$1, updated_at=$2,
            cost=COALESCE($3, cost),
            invoice_notes=COALESCE($4, invoice_notes)
        WHERE id=$5 AND status = ANY($6)`
	from := make([]string, len(allowedFrom))
	for i, status := range allowedFrom {
		from[i] = string(status)
	}
	cmd, err := r.pool.Exec(ctx, query,
		change.Status,
		change.UpdatedAt,
		change.Cost,
		change.InvoiceNotes,
		id,
		from,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrStatusConflict
	}
	return nil
}

func (r *requestRepository) AssignTechnician(ctx context.Context, id, technicianID string, updatedAt time.Time) error {
	const query = `UPDATE service_requests SET technician_id=$1, updated_at=$2 WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, technicianID, updatedAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *requestRepository) UpdateWorkNotes(ctx context.Context, id string, notes *string, estimatedCompletion *time.Time, updatedAt time.Time) error {
	const query = `
        UPDATE service_requests
        SET technician_notes=COALESCE($1, technician_notes),
            estimated_completion=COALESCE($2, estimated_completion),
            updated_at=$3
        WHERE id=$4`
	cmd, err := r.pool.Exec(ctx, query, notes, estimatedCompletion, updatedAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *requestRepository) Revenue(ctx context.Context) (RevenueSummary, error) {
	const query = `
        SELECT COUNT(*), COALESCE(SUM(cost), 0)
        FROM service_requests
        WHERE status=$1 AND cost IS NOT NULL`
	var summary RevenueSummary
	if err := r.pool.QueryRow(ctx, query, domain.StatusCompleted).Scan(&summary.CompletedCount, &summary.TotalRevenue); err != nil {
		return RevenueSummary{}, err
	}
	return summary, nil
}

func scanRequests(rows pgx.Rows) ([]domain.ServiceRequest, error) {
	var result []domain.ServiceRequest
	for rows.Next() {
		var request domain.ServiceRequest
		if err := rows.Scan(
			&request.ID,
			&request.UserID,
			&request.CustomerName,
			&request.CustomerEmail,
			&request.DeviceType,
			&request.Brand,
			&request.OSVersion,
			&request.IssueDescription,
			&request.ErrorMessages,
			&request.Status,
			&request.SubmittedAt,
			&request.UpdatedAt,
			&request.TechnicianID,
			&request.TechnicianNotes,
			&request.EstimatedCompletion,
			&request.AppointmentDate,
			&request.Cost,
			&request.InvoiceNotes,
		); err != nil {
			return nil, err
		}
		result = append(result, request)
	}
	return result, rows.Err()
}
