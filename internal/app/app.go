package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/drstein77/oilcheckout/internal/checkout"
	"github.com/drstein77/oilcheckout/internal/config"
	"github.com/drstein77/oilcheckout/internal/controllers"
	"github.com/drstein77/oilcheckout/internal/dbkeeper"
	"github.com/drstein77/oilcheckout/internal/gateway"
	"github.com/drstein77/oilcheckout/internal/logger"
	"github.com/drstein77/oilcheckout/internal/notify"
	"github.com/drstein77/oilcheckout/internal/storage"
	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

type Server struct {
	srv      *http.Server
	ctx      context.Context
	storage  *storage.MemoryStorage
	sessions *checkout.Sessions
	Log      *logger.Logger
}

// NewServer reads the options and wires every component of the service.
func NewServer(ctx context.Context, args []string) (*Server, error) {
	// create and initialize a new option instance
	option := config.NewOptions()
	if err := option.ParseFlags(args); err != nil {
		return nil, err
	}

	// get a new logger
	nLogger, err := logger.NewLogger(option.LogLevel())
	if err != nil {
		return nil, err
	}

	checkoutCfg, err := option.Checkout()
	if err != nil {
		return nil, fmt.Errorf("invalid checkout configuration: %w", err)
	}
	declineAbove, limited, err := option.GatewayDeclineAbove()
	if err != nil {
		return nil, fmt.Errorf("invalid gateway configuration: %w", err)
	}

	// orders survive restarts only when a database is configured
	var keeper storage.Keeper
	if kp := dbkeeper.NewDBKeeper(ctx, option.DataBaseDSN, option.MigrationsPath(), nLogger.Named("dbkeeper")); kp != nil {
		keeper = kp
	}
	store := storage.NewMemoryStorage(ctx, keeper, nLogger.Named("storage"))

	queue := notify.NewQueue(
		notify.WithDefaultDuration(option.NotificationDuration()),
		notify.WithLog(nLogger.Named("notify")),
	)

	sandbox := &gateway.Sandbox{Latency: option.GatewayLatency()}
	if limited {
		sandbox.DeclineAbove = &declineAbove
	}
	orders := gateway.NewOrderGateway(sandbox, store, nLogger.Named("gateway"))
	sessions := checkout.NewSessions(checkoutCfg, store, orders, queue, nLogger.Named("checkout"))

	basecontr := controllers.NewBaseController(store, sessions, queue, nLogger.Named("http"))

	// create router and mount routes
	r := chi.NewRouter()
	r.Mount("/", basecontr.Route())

	nLogger.Info("checkout configured",
		zap.String("address", option.RunAddr()),
		zap.String("currency", checkoutCfg.Pricing.Currency),
		zap.String("free_shipping_threshold", checkoutCfg.Pricing.FreeShippingThreshold.StringFixed(2)),
		zap.String("flat_shipping_fee", checkoutCfg.Pricing.FlatShippingFee.StringFixed(2)),
		zap.String("tax_rate", checkoutCfg.Pricing.TaxRate.String()),
		zap.Bool("persistent_orders", keeper != nil),
	)

	return &Server{
		srv:      &http.Server{Addr: option.RunAddr(), Handler: r},
		ctx:      ctx,
		storage:  store,
		sessions: sessions,
		Log:      nLogger,
	}, nil
}

// Serve listens until Shutdown is called.
func (server *Server) Serve() error {
	server.Log.Info("Starting server", zap.String("address", server.srv.Addr))
	if err := server.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits up to timeout for the active
// ones and releases checkout sessions and storage.
func (server *Server) Shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(server.ctx, timeout)
	defer cancel()

	if err := server.srv.Shutdown(ctx); err != nil {
		server.Log.Error("Server shutdown error", zap.Error(err))
	}
	server.sessions.CloseAll()
	server.storage.Close()
	server.Log.Info("Server stopped")
	server.Log.Sync()
}
