package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/auth"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/order"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/services/ordersvc"
	cancelorder "github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/transport/http/cancel_order"
	createorder "github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/transport/http/create_order"
	getorder "github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/transport/http/get_order"
	listorders "github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/transport/http/list_orders"
	updatestatus "github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/transport/http/update_status"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/pkg/http/middleware/trace"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/pkg/logger"
	"github.com/spf13/viper"
)

type service interface {
	Create(ctx context.Context, caller auth.Caller, items []ordersvc.CreateItem, addr order.ShippingAddress) (*order.Order, error)
	Get(ctx context.Context, caller auth.Caller, orderID int64) (*order.Order, error)
	List(ctx context.Context, caller auth.Caller, filter ordersvc.ListFilter, page, limit int) (*ordersvc.Page, error)
	UpdateStatus(ctx context.Context, orderID int64, newStatus string) (*order.Order, error)
	Cancel(ctx context.Context, caller auth.Caller, orderID int64) (*order.Order, error)
}

type HTTPTransport struct {
	server  *http.Server
	router  *chi.Mux
	service service
}

func NewHTTPTransport(service service) *HTTPTransport {
	router := newRouter()
	server := newServer(router)
	return &HTTPTransport{
		server:  server,
		router:  router,
		service: service,
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

// Shutdown stops accepting new connections and drains in-flight requests.
func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// Handler exposes the configured router.
func (h *HTTPTransport) Handler() http.Handler {
	return h.router
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Get("/healthz", h.healthz)

	h.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/orders", h.createOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{orderID}", h.getOrder)
		r.Patch("/orders/{orderID}/status", h.updateStatus)
		r.Post("/orders/{orderID}/cancel", h.cancelOrder)
	})
}

func (h *HTTPTransport) createOrder(w http.ResponseWriter, r *http.Request) {
	createorder.CreateOrder(w, r, h.service)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	getorder.GetOrder(w, r, h.service)
}

func (h *HTTPTransport) listOrders(w http.ResponseWriter, r *http.Request) {
	listorders.ListOrders(w, r, h.service)
}

func (h *HTTPTransport) updateStatus(w http.ResponseWriter, r *http.Request) {
	updatestatus.UpdateStatus(w, r, h.service)
}

func (h *HTTPTransport) cancelOrder(w http.ResponseWriter, r *http.Request) {
	cancelorder.CancelOrder(w, r, h.service)
}

func (h *HTTPTransport) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(trace.NewTraceMiddleware)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:    "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler: router,
	}
}
