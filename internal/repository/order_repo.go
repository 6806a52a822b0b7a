package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"myshop-backend/internal/models"
)

type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

func (r *OrderRepo) Create(ctx context.Context, order *models.Order) error {
	productsJSON, err := order.ProductsJSON()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (id, user_id, user_email, products, phone_number, delivery_method, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	order.ID = uuid.New()

	return r.pool.QueryRow(ctx, query,
		order.ID, order.UserID, order.UserEmail, productsJSON,
		order.PhoneNumber, order.DeliveryMethod, order.Address,
	).Scan(&order.CreatedAt)
}

func (r *OrderRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, user_email, products, phone_number, delivery_method, address, created_at
		 FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]models.Order, 0)
	for rows.Next() {
		var o models.Order
		var productsJSON []byte
		if err := rows.Scan(&o.ID, &o.UserID, &o.UserEmail, &productsJSON,
			&o.PhoneNumber, &o.DeliveryMethod, &o.Address, &o.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(productsJSON, &o.Products); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	return orders, rows.Err()
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o := &models.Order{}
	var productsJSON []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, user_email, products, phone_number, delivery_method, address, created_at
		 FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.UserID, &o.UserEmail, &productsJSON,
		&o.PhoneNumber, &o.DeliveryMethod, &o.Address, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(productsJSON, &o.Products); err != nil {
		return nil, err
	}
	return o, nil
}
