package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/apperrors"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/currency"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/order"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/orderitem"
)

// GenericConn is an interface that works with pgxpool.Pool, pgxpool.Conn and pgx.Tx.
type GenericConn interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// OrderDal represents order data access layer model.
type OrderDal struct {
	Id                 int64     `db:"id"`
	UserId             int64     `db:"user_id"`
	Status             string    `db:"status"`
	TotalPriceCents    int64     `db:"total_price_cents"`
	TotalPriceCurrency string    `db:"total_price_currency"`
	ShippingStreet     string    `db:"shipping_street"`
	ShippingCity       string    `db:"shipping_city"`
	ShippingState      string    `db:"shipping_state"`
	ShippingCountry    string    `db:"shipping_country"`
	ShippingPostalCode string    `db:"shipping_postal_code"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// ToModel converts OrderDal to service layer Order model.
func (o *OrderDal) ToModel() (*order.Order, error) {
	cur, err := currency.ParseCurrency(o.TotalPriceCurrency)
	if err != nil {
		return nil, err
	}
	status, err := order.ParseStatus(o.Status)
	if err != nil {
		return nil, err
	}

	return &order.Order{
		ID:                 o.Id,
		UserID:             o.UserId,
		Status:             status,
		TotalPriceCents:    o.TotalPriceCents,
		TotalPriceCurrency: cur,
		ShippingAddress: order.ShippingAddress{
			Street:     o.ShippingStreet,
			City:       o.ShippingCity,
			State:      o.ShippingState,
			Country:    o.ShippingCountry,
			PostalCode: o.ShippingPostalCode,
		},
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
		OrderItems: []orderitem.OrderItem{}, // Populated separately
	}, nil
}

var orderColumns = []string{
	"id",
	"user_id",
	"status",
	"total_price_cents",
	"total_price_currency",
	"shipping_street",
	"shipping_city",
	"shipping_state",
	"shipping_country",
	"shipping_postal_code",
	"created_at",
	"updated_at",
}

// PostgresOrderRepository represents a Postgres order repository.
type PostgresOrderRepository struct {
	conn GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderRepository creates a new Postgres order repository.
func NewPostgresOrderRepository(conn GenericConn) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var dal OrderDal
	err := row.Scan(
		&dal.Id,
		&dal.UserId,
		&dal.Status,
		&dal.TotalPriceCents,
		&dal.TotalPriceCurrency,
		&dal.ShippingStreet,
		&dal.ShippingCity,
		&dal.ShippingState,
		&dal.ShippingCountry,
		&dal.ShippingPostalCode,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return dal.ToModel()
}

// Insert inserts a single order and returns it with its assigned id.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) (order.Order, error) {
	sql, args, err := r.sb.
		Insert("orders").
		Columns(
			"user_id",
			"status",
			"total_price_cents",
			"total_price_currency",
			"shipping_street",
			"shipping_city",
			"shipping_state",
			"shipping_country",
			"shipping_postal_code",
			"created_at",
			"updated_at",
		).
		Values(
			o.UserID,
			o.Status.String(),
			o.TotalPriceCents,
			o.TotalPriceCurrency.String(),
			o.ShippingAddress.Street,
			o.ShippingAddress.City,
			o.ShippingAddress.State,
			o.ShippingAddress.Country,
			o.ShippingAddress.PostalCode,
			o.CreatedAt,
			o.UpdatedAt,
		).
		Suffix("RETURNING " + joinColumns(orderColumns)).
		ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	inserted, err := scanOrder(r.conn.QueryRow(ctx, sql, args...))
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}

	inserted.OrderItems = append(inserted.OrderItems, o.OrderItems...)

	return *inserted, nil
}

// GetByID retrieves a single order by its id.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	sql, args, err := r.sb.
		Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	model, err := scanOrder(r.conn.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", id, apperrors.ErrNotFound)
		}

		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return model, nil
}

// Query retrieves orders based on filter criteria, newest first.
func (r *PostgresOrderRepository) Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	query := r.sb.
		Select(orderColumns...).
		From("orders").
		OrderBy("created_at DESC", "id DESC")

	query = applyOrderFilter(query, filter)

	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var result []order.Order
	for rows.Next() {
		model, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		result = append(result, *model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// Count returns the total number of orders matching the filter.
func (r *PostgresOrderRepository) Count(ctx context.Context, filter *order.QueryOrdersModel) (int64, error) {
	query := r.sb.
		Select("count(*)").
		From("orders")

	query = applyOrderFilter(query, filter)

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var total int64
	if err := r.conn.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}

	return total, nil
}

// UpdateStatus sets the status of an order and returns the updated row.
func (r *PostgresOrderRepository) UpdateStatus(ctx context.Context, id int64, status order.Status) (*order.Order, error) {
	sql, args, err := r.sb.
		Update("orders").
		Set("status", status.String()).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + joinColumns(orderColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update query: %w", err)
	}

	model, err := scanOrder(r.conn.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", id, apperrors.ErrNotFound)
		}

		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	return model, nil
}

func applyOrderFilter(query sq.SelectBuilder, filter *order.QueryOrdersModel) sq.SelectBuilder {
	if len(filter.Ids) > 0 {
		query = query.Where(sq.Eq{"id": filter.Ids})
	}
	if len(filter.UserIds) > 0 {
		query = query.Where(sq.Eq{"user_id": filter.UserIds})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, s.String())
		}
		query = query.Where(sq.Eq{"status": statuses})
	}

	return query
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
