package ordersvc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/apperrors"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/clients/inventory"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/clients/notification"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/clients/payment"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/dal/interfaces/iorderitemrepo"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/dal/interfaces/iorderrepo"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/dal/postgres"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/dal/uow"
	orderitemrepo "github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/dal/repositories/orderitem/postgres"
	orderrepo "github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/dal/repositories/order/postgres"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/auth"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/currency"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/order"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/orderitem"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// unitOfWork drives the local transaction of the create saga on one
// dedicated connection.
type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Release()

	OrderRepository() iorderrepo.PostgresRepository
	OrderItemRepository() iorderitemrepo.PostgresRepository
}

type inventoryClient interface {
	Fetch(ctx context.Context, productID int64) (inventory.Product, error)
	AdjustStock(ctx context.Context, productID int64, quantity int, direction inventory.Direction) error
}

type paymentClient interface {
	Charge(ctx context.Context, orderID, userID, amountCents int64, cur currency.Currency) (payment.Charge, error)
}

type notificationClient interface {
	Notify(ctx context.Context, userID int64, typ notification.Type, orderID int64, data map[string]any)
}

type metricsRecorder interface {
	OrderCreated(ctx context.Context)
	OrderTerminal(ctx context.Context, status string)
	ObserveOperation(ctx context.Context, operation string, d time.Duration)
}

// CreateItem is one requested line of a new order. Prices are never part of
// the request; they are fetched from the catalog.
type CreateItem struct {
	ProductID int64
	Quantity  int
}

// Page is one page of a filtered order listing.
type Page struct {
	Orders     []order.Order `json:"orders"`
	TotalCount int64         `json:"totalCount"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
}

// ListFilter carries the optional listing filters. Statuses narrows any
// caller's listing; UserID is honored for administrators only, everyone
// else is always scoped to their own orders.
type ListFilter struct {
	UserID   int64
	Statuses []order.Status
}

// OrderService orchestrates the order-fulfillment saga.
type OrderService struct {
	newUOW        func() unitOfWork
	orderRepo     iorderrepo.PostgresRepository
	orderItemRepo iorderitemrepo.PostgresRepository
	inventory     inventoryClient
	payment       paymentClient
	notifications notificationClient
	metrics       metricsRecorder
	tracer        trace.Tracer
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{
		tracer: otel.Tracer("ordersvc"),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// WithPostgresClient sets the Postgres client for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *OrderService) {
		s.newUOW = func() unitOfWork {
			return uow.NewUnitOfWork(pgClient)
		}
		s.orderRepo = orderrepo.NewPostgresOrderRepository(pgClient.Pool())
		s.orderItemRepo = orderitemrepo.NewPostgresOrderItemRepository(pgClient.Pool())
	}
}

// WithInventoryClient sets the inventory client.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithInventoryClient(c inventoryClient) option {
	return func(s *OrderService) {
		s.inventory = c
	}
}

// WithPaymentClient sets the payment client.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPaymentClient(c paymentClient) option {
	return func(s *OrderService) {
		s.payment = c
	}
}

// WithNotificationClient sets the notification client.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithNotificationClient(c notificationClient) option {
	return func(s *OrderService) {
		s.notifications = c
	}
}

// WithMetrics sets the metrics recorder.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithMetrics(m metricsRecorder) option {
	return func(s *OrderService) {
		s.metrics = m
	}
}

// Create runs the order-creation saga: validate, reserve stock, persist the
// order inside a local transaction, charge payment, and compensate stock if
// the charge fails after stock was already decremented.
func (s *OrderService) Create(
	ctx context.Context,
	caller auth.Caller,
	items []CreateItem,
	addr order.ShippingAddress,
) (*order.Order, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "ordersvc.Create")
	defer span.End()
	defer func() {
		s.metrics.ObserveOperation(ctx, "create", time.Since(start))
	}()

	if err := validateCreate(items, addr); err != nil {
		span.SetStatus(codes.Error, "validation failed")

		return nil, err
	}

	work := s.newUOW()
	defer work.Release()

	if err := work.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// No-op once committed
	defer func() {
		if err := work.Rollback(ctx); err != nil {
			slog.ErrorContext(ctx, "rollback failed", "error", err)
		}
	}()

	products, err := s.fetchProducts(ctx, items)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if products[item.ProductID].Stock < item.Quantity {
			return nil, fmt.Errorf("product %d has %d units, %d requested: %w",
				item.ProductID, products[item.ProductID].Stock, item.Quantity, apperrors.ErrInsufficientStock)
		}
	}

	totalCents, cur, err := computeTotal(items, products)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("order.total_price_cents", totalCents))

	now := time.Now()
	inserted, err := work.OrderRepository().Insert(ctx, order.Order{
		UserID:             caller.UserID,
		Status:             order.StatusPending,
		TotalPriceCents:    totalCents,
		TotalPriceCurrency: cur,
		ShippingAddress:    addr,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("order.id", inserted.ID))

	orderItems := make([]orderitem.OrderItem, 0, len(items))
	for _, item := range items {
		orderItems = append(orderItems, orderitem.OrderItem{
			OrderID:       inserted.ID,
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			PriceCents:    products[item.ProductID].PriceCents,
			PriceCurrency: products[item.ProductID].PriceCurrency,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	insertedItems, err := work.OrderItemRepository().BulkInsert(ctx, orderItems)
	if err != nil {
		return nil, err
	}
	inserted.OrderItems = insertedItems

	if err := s.reserveStock(ctx, items); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock reservation failed")

		return nil, err
	}

	if err := work.Commit(ctx); err != nil {
		// Local insert is lost but stock is already decremented; restore it.
		s.releaseStock(ctx, itemsToOrderItems(items))

		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	charge, err := s.payment.Charge(ctx, inserted.ID, caller.UserID, totalCents, cur)
	if err != nil {
		s.releaseStock(ctx, inserted.OrderItems)

		if _, updateErr := s.orderRepo.UpdateStatus(ctx, inserted.ID, order.StatusFailed); updateErr != nil {
			slog.ErrorContext(ctx, "failed to mark order failed after declined charge",
				"order_id", inserted.ID, "error", updateErr)
		}
		s.metrics.OrderTerminal(ctx, order.StatusFailed.String())
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment failed")

		return nil, fmt.Errorf("charge for order %d: %w: %w", inserted.ID, apperrors.ErrPaymentFailed, err)
	}

	paid, err := s.orderRepo.UpdateStatus(ctx, inserted.ID, order.StatusPaid)
	if err != nil {
		// The charge went through; surfacing an error here would hide a paid
		// order. Log and return the pending snapshot.
		slog.ErrorContext(ctx, "failed to mark order paid",
			"order_id", inserted.ID, "transaction_id", charge.TransactionID, "error", err)
	} else {
		paid.OrderItems = inserted.OrderItems
		inserted = *paid
	}

	s.metrics.OrderCreated(ctx)
	span.SetAttributes(attribute.String("order.status", inserted.Status.String()))

	s.notifications.Notify(ctx, caller.UserID, notification.TypeOrderPaid, inserted.ID, map[string]any{
		"totalPriceCents": totalCents,
		"currency":        cur.String(),
		"transactionId":   charge.TransactionID,
	})
	s.notifications.Notify(ctx, caller.UserID, notification.TypeOrderCreated, inserted.ID, map[string]any{
		"totalPriceCents": totalCents,
		"currency":        cur.String(),
	})

	return &inserted, nil
}

// Get returns one order with its items. Only the owning user or an
// administrator may read it.
func (s *OrderService) Get(ctx context.Context, caller auth.Caller, orderID int64) (*order.Order, error) {
	ctx, span := s.tracer.Start(ctx, "ordersvc.Get",
		trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	o, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !caller.CanAccessOrder(o.UserID) {
		return nil, fmt.Errorf("order %d: %w", orderID, apperrors.ErrForbidden)
	}

	items, err := s.orderItemRepo.Query(ctx, &orderitem.QueryOrderItemsModel{
		OrderIds: []int64{orderID},
	})
	if err != nil {
		return nil, err
	}
	o.OrderItems = items

	return o, nil
}

// List returns a newest-first page of orders. Non-administrators are always
// scoped to their own orders; administrators may filter by status and user.
func (s *OrderService) List(ctx context.Context, caller auth.Caller, filter ListFilter, page, limit int) (*Page, error) {
	ctx, span := s.tracer.Start(ctx, "ordersvc.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	query := &order.QueryOrdersModel{
		Statuses: filter.Statuses,
		Limit:    limit,
		Offset:   (page - 1) * limit,
	}
	if caller.IsAdmin() {
		if filter.UserID > 0 {
			query.UserIds = []int64{filter.UserID}
		}
	} else {
		query.UserIds = []int64{caller.UserID}
	}

	orders, err := s.orderRepo.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	total, err := s.orderRepo.Count(ctx, query)
	if err != nil {
		return nil, err
	}

	if len(orders) > 0 {
		orderIds := make([]int64, 0, len(orders))
		for _, o := range orders {
			orderIds = append(orderIds, o.ID)
		}
		items, err := s.orderItemRepo.Query(ctx, &orderitem.QueryOrderItemsModel{OrderIds: orderIds})
		if err != nil {
			return nil, err
		}
		for i := range orders {
			for _, item := range items {
				if item.OrderID == orders[i].ID {
					orders[i].OrderItems = append(orders[i].OrderItems, item)
				}
			}
		}
	}

	if orders == nil {
		orders = []order.Order{}
	}

	return &Page{
		Orders:     orders,
		TotalCount: total,
		Page:       page,
		Limit:      limit,
	}, nil
}

// UpdateStatus moves an order to newStatus. The transition must be
// permitted by the state machine; skipping steps or leaving a terminal
// status fails with an invalid-state error.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, newStatus string) (*order.Order, error) {
	ctx, span := s.tracer.Start(ctx, "ordersvc.UpdateStatus",
		trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	status, err := order.ParseStatus(newStatus)
	if err != nil {
		return nil, err
	}
	// Cancellation releases stock and records the refund intent; only
	// Cancel does that, so it is not a plain status update.
	if status == order.StatusCancelled {
		return nil, apperrors.Validationf("cancellation must go through the cancel operation")
	}

	current, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !current.Status.CanTransitionTo(status) {
		span.SetStatus(codes.Error, "illegal transition")

		return nil, fmt.Errorf("cannot move order %d from %s to %s: %w",
			orderID, current.Status, status, apperrors.ErrInvalidState)
	}

	updated, err := s.orderRepo.UpdateStatus(ctx, orderID, status)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("order.status", updated.Status.String()))

	switch status {
	case order.StatusShipped:
		s.notifications.Notify(ctx, updated.UserID, notification.TypeOrderShipped, orderID, nil)
	case order.StatusDelivered:
		s.notifications.Notify(ctx, updated.UserID, notification.TypeOrderDelivered, orderID, nil)
		s.metrics.OrderTerminal(ctx, status.String())
	}

	return updated, nil
}

// Cancel transitions an order to cancelled and restores its stock.
// Terminal orders cannot be cancelled.
func (s *OrderService) Cancel(ctx context.Context, caller auth.Caller, orderID int64) (*order.Order, error) {
	ctx, span := s.tracer.Start(ctx, "ordersvc.Cancel",
		trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	current, err := s.Get(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}

	if current.Status.IsTerminal() {
		span.SetStatus(codes.Error, "terminal order")

		return nil, fmt.Errorf("order %d is %s: %w", orderID, current.Status, apperrors.ErrInvalidState)
	}

	s.releaseStock(ctx, current.OrderItems)

	switch current.Status {
	case order.StatusPaid, order.StatusProcessing, order.StatusShipped:
		// Refund execution is owned by the payment service; record the intent.
		slog.InfoContext(ctx, "refund intent",
			"order_id", orderID,
			"user_id", current.UserID,
			"amount_cents", current.TotalPriceCents,
			"currency", current.TotalPriceCurrency.String(),
		)
	}

	updated, err := s.orderRepo.UpdateStatus(ctx, orderID, order.StatusCancelled)
	if err != nil {
		return nil, err
	}
	updated.OrderItems = current.OrderItems

	s.metrics.OrderTerminal(ctx, order.StatusCancelled.String())
	s.notifications.Notify(ctx, current.UserID, notification.TypeOrderCancelled, orderID, nil)

	return updated, nil
}

func validateCreate(items []CreateItem, addr order.ShippingAddress) error {
	if len(items) == 0 {
		return apperrors.Validationf("order must contain at least one item")
	}

	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return apperrors.Validationf("quantity for product %d must be positive", item.ProductID)
		}
		if _, ok := seen[item.ProductID]; ok {
			return apperrors.Validationf("duplicate product %d in order", item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}

	return addr.Validate()
}

// fetchProducts loads price and stock for every requested product. The
// per-product calls are independent and run concurrently.
func (s *OrderService) fetchProducts(ctx context.Context, items []CreateItem) (map[int64]inventory.Product, error) {
	fetched := make([]inventory.Product, len(items))
	g, gctx := errgroup.WithContext(ctx)

	for i, item := range items {
		g.Go(func() error {
			product, err := s.inventory.Fetch(gctx, item.ProductID)
			if err != nil {
				return err
			}
			fetched[i] = product

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	products := make(map[int64]inventory.Product, len(fetched))
	for i, item := range items {
		products[item.ProductID] = fetched[i]
	}

	return products, nil
}

func computeTotal(items []CreateItem, products map[int64]inventory.Product) (int64, currency.Currency, error) {
	var totalCents int64
	cur := products[items[0].ProductID].PriceCurrency
	for _, item := range items {
		product := products[item.ProductID]
		if product.PriceCurrency != cur {
			return 0, "", apperrors.Validationf("mixed currencies in one order: %s and %s", cur, product.PriceCurrency)
		}
		totalCents += product.PriceCents * int64(item.Quantity)
	}

	return totalCents, cur, nil
}

// reserveStock decrements stock item by item. If a decrement fails partway,
// stock already taken by earlier items is restored before the error
// surfaces, so a failed create never leaks reserved stock.
func (s *OrderService) reserveStock(ctx context.Context, items []CreateItem) error {
	decremented := make([]CreateItem, 0, len(items))
	for _, item := range items {
		if err := s.inventory.AdjustStock(ctx, item.ProductID, item.Quantity, inventory.DirectionDecrease); err != nil {
			s.releaseStock(ctx, itemsToOrderItems(decremented))

			return fmt.Errorf("failed to reserve stock for product %d: %w", item.ProductID, err)
		}
		decremented = append(decremented, item)
	}

	return nil
}

// releaseStock is the compensating action: it restores stock for every
// item, best-effort. Individual failures are logged, never escalated; there
// is no further compensating step available.
func (s *OrderService) releaseStock(ctx context.Context, items []orderitem.OrderItem) {
	for _, item := range items {
		if err := s.inventory.AdjustStock(ctx, item.ProductID, item.Quantity, inventory.DirectionIncrease); err != nil {
			slog.ErrorContext(ctx, "failed to restore stock",
				"product_id", item.ProductID,
				"quantity", item.Quantity,
				"error", err,
			)
		}
	}
}

func itemsToOrderItems(items []CreateItem) []orderitem.OrderItem {
	out := make([]orderitem.OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, orderitem.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	return out
}
