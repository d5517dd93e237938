package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/repair-desk/internal/domain"
)

// TechnicianRepository reads the fixed technician roster. Workload is derived
// from open assigned requests at query time.
type TechnicianRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Technician, error)
	List(ctx context.Context) ([]domain.Technician, error)
}

type technicianRepository struct {
	pool *pgxpool.Pool
}

// NewTechnicianRepository instantiates the repository.
func NewTechnicianRepository(pool *pgxpool.Pool) TechnicianRepository {
	return &technicianRepository{pool: pool}
}

const openWorkloadJoin = `
        LEFT JOIN service_requests r
            ON r.technician_id = t.id
            AND r.status NOT IN ('Completed', 'Cancelled', 'Declined')`

func (r *technicianRepository) GetByID(ctx context.Context, id string) (*domain.Technician, error) {
	query := `
        SELECT t.id, t.name, t.expertise, COUNT(r.id)
        FROM technicians t` + openWorkloadJoin + `
        WHERE t.id=$1
        GROUP BY t.id, t.name, t.expertise`
	var tech domain.Technician
	if err := r.pool.QueryRow(ctx, query, id).Scan(&tech.ID, &tech.Name, &tech.Expertise, &tech.CurrentWorkload); err != nil {
		return nil, err
	}
	return &tech, nil
}

func (r *technicianRepository) List(ctx context.Context) ([]domain.Technician, error) {
	query := `
        SELECT t.id, t.name, t.expertise, COUNT(r.id)
        FROM technicians t` + openWorkloadJoin + `
        GROUP BY t.id, t.name, t.expertise
        ORDER BY t.name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Technician
	for rows.Next() {
		var tech domain.Technician
		if err := rows.Scan(&tech.ID, &tech.Name, &tech.Expertise, &tech.CurrentWorkload); err != nil {
			return nil, err
		}
		result = append(result, tech)
	}
	return result, rows.Err()
}
