package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/styledecor/internal/config"
	"github.com/iliyamo/styledecor/internal/database"
	"github.com/iliyamo/styledecor/internal/handler"
	"github.com/iliyamo/styledecor/internal/logging"
	"github.com/iliyamo/styledecor/internal/metrics"
	"github.com/iliyamo/styledecor/internal/payment"
	"github.com/iliyamo/styledecor/internal/queue"
	"github.com/iliyamo/styledecor/internal/repository"
	"github.com/iliyamo/styledecor/internal/repository/memory"
	"github.com/iliyamo/styledecor/internal/router"
	"github.com/iliyamo/styledecor/internal/service"
)

// stores is the entity store selected by STORE_BACKEND.
type stores struct {
	users      service.UserStore
	services   service.ServiceStore
	centers    service.ServiceCenterStore
	decorators service.DecoratorStore
	bookings   service.BookingStore
	payments   service.PaymentStore
	earnings   service.EarningStore
	close      func()
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	if cfg.StoreBackend == config.StoreMemory {
		zap.L().Warn("using in-memory store; data is lost on exit")
		m := memory.New()
		return &stores{
			users: m.Users, services: m.Services, centers: m.ServiceCenters, decorators: m.Decorators,
			bookings: m.Bookings, payments: m.Payments, earnings: m.Earnings, close: func() {},
		}, nil
	}
	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &stores{
		users:      repository.NewUserRepo(db),
		services:   repository.NewServiceRepo(db),
		centers:    repository.NewServiceCenterRepo(db),
		decorators: repository.NewDecoratorRepo(db),
		bookings:   repository.NewBookingRepo(db),
		payments:   repository.NewPaymentRepo(db),
		earnings:   repository.NewEarningRepo(db),
		close:      func() { _ = db.Close() },
	}, nil
}

func newGateway(cfg config.Config) payment.Gateway {
	if cfg.OmisePublicKey == "" || cfg.OmiseSecretKey == "" {
		zap.L().Warn("OMISE keys not set, payments disabled")
		return payment.Disabled{}
	}
	if _, err := payment.MinorUnits(cfg.PaymentCurrency); err != nil {
		zap.L().Fatal("payment currency", zap.Error(err))
	}
	gw, err := payment.NewOmiseGateway(cfg.OmisePublicKey, cfg.OmiseSecretKey, cfg.PaymentSourceType)
	if err != nil {
		zap.L().Fatal("omise client", zap.Error(err))
	}
	return gw
}

func main() {
	cfg, err := config.Load()
	logger, syncLogs := logging.Init(cfg.Env)
	defer syncLogs()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal("open store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer st.close()

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	// A nil *queue.Publisher must not reach the engines as a non-nil
	// interface, so the variable is typed as the interface.
	var events service.Publisher
	if cfg.RabbitURL != "" {
		pub, err := queue.NewPublisher(cfg.RabbitURL, cfg.EventsExchange)
		if err != nil {
			logger.Warn("rabbitmq unavailable, events disabled", zap.Error(err))
		} else {
			defer pub.Close()
			events = pub
		}
		if cfg.QueueConsumerEnabled {
			go func() {
				if err := queue.StartActivityConsumer(ctx, cfg.RabbitURL, cfg.EventsExchange); err != nil &&
					!errors.Is(err, context.Canceled) {
					logger.Error("activity consumer stopped", zap.Error(err))
				}
			}()
		}
	}

	users := service.NewUserEngine(st.users, st.decorators)
	bookings := service.NewBookingEngine(st.bookings, st.decorators, st.services, st.earnings, events)
	roster := service.NewRosterEngine(st.decorators, st.users, st.earnings, events)
	settlement := service.NewSettlementEngine(st.bookings, st.payments, newGateway(cfg), events,
		cfg.PaymentCurrency, cfg.SiteDomain)
	catalog := service.NewCatalogEngine(st.services, st.centers)
	reconciler := service.NewReconciler(st.bookings, st.decorators, st.earnings)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORSOrigins}))
	e.Use(logging.RequestLogger(logger))
	e.Use(metrics.Middleware())
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	router.Register(e, router.Handlers{
		Auth:       handler.NewAuthHandler(cfg, users),
		Bookings:   handler.NewBookingHandler(bookings, users),
		Decorators: handler.NewDecoratorHandler(roster, bookings),
		Payments:   handler.NewPaymentHandler(settlement),
		Catalog:    handler.NewCatalogHandler(catalog),
		Admin:      handler.NewAdminHandler(reconciler),
	}, router.Deps{Cfg: cfg, Redis: rdb, Roles: users.Role})

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env),
			zap.String("store", cfg.StoreBackend))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", zap.Error(err))
	}
}
