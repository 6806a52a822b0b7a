package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"myshop-backend/internal/models"
)

type ProductRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

func (r *ProductRepo) List(ctx context.Context) ([]models.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, price, image_url, created_at
		 FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]models.Product, 0)
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

func (r *ProductRepo) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	p := &models.Product{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, price, image_url, created_at
		 FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}
