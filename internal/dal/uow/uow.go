package uow

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/dal/interfaces/iorderitemrepo"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/dal/interfaces/iorderrepo"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/dal/postgres"
	orderrepo "github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/dal/repositories/order/postgres"
	orderitemrepo "github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/dal/repositories/orderitem/postgres"
)

// unitOfWork owns one dedicated connection for the lifetime of a
// transaction. All statements issued through its repositories after Begin
// run on that connection and observe each other. Callers must pair Begin
// with exactly one of Commit or Rollback and must call Release on every
// exit path.
type unitOfWork struct {
	pool          *pgxpool.Pool
	conn          *pgxpool.Conn
	tx            pgx.Tx
	orderRepo     iorderrepo.PostgresRepository
	orderItemRepo iorderitemrepo.PostgresRepository
}

func NewUnitOfWork(client *postgres.Client) *unitOfWork {
	pool := client.Pool()

	return &unitOfWork{
		pool:          pool,
		orderRepo:     orderrepo.NewPostgresOrderRepository(pool),
		orderItemRepo: orderitemrepo.NewPostgresOrderItemRepository(pool),
	}
}

func (u *unitOfWork) OrderRepository() iorderrepo.PostgresRepository {
	return u.orderRepo
}

func (u *unitOfWork) OrderItemRepository() iorderitemrepo.PostgresRepository {
	return u.orderItemRepo
}

// Begin acquires a dedicated connection from the pool and opens a
// transaction on it. Repositories are rebound to the transaction.
func (u *unitOfWork) Begin(ctx context.Context) error {
	conn, err := u.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Release()
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.conn = conn
	u.tx = tx
	u.orderRepo = orderrepo.NewPostgresOrderRepository(tx)
	u.orderItemRepo = orderitemrepo.NewPostgresOrderItemRepository(tx)

	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Commit(ctx)
}

// Rollback aborts the transaction. Safe to defer after Commit: a closed
// transaction is not an error.
func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}

	return nil
}

// Release returns the dedicated connection to the pool and rebinds the
// repositories to pooled execution. Must be called on every exit path.
func (u *unitOfWork) Release() {
	if u.conn == nil {
		return
	}

	u.conn.Release()
	u.conn = nil
	u.tx = nil
	u.orderRepo = orderrepo.NewPostgresOrderRepository(u.pool)
	u.orderItemRepo = orderitemrepo.NewPostgresOrderItemRepository(u.pool)
}
