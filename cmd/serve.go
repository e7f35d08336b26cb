package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vibast-solutions/ms-go-inventory/app/controller"
	inventorygrpc "github.com/vibast-solutions/ms-go-inventory/app/grpc"
	"github.com/vibast-solutions/ms-go-inventory/app/metrics"
	"github.com/vibast-solutions/ms-go-inventory/app/middleware"
	"github.com/vibast-solutions/ms-go-inventory/app/ratelimit"
	"github.com/vibast-solutions/ms-go-inventory/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  `Start both HTTP (Echo) and gRPC servers for the inventory service.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := newMigrator(); err != nil {
			logrus.WithError(err).Fatal("Failed to configure migrations")
		}
		if err := goose.UpContext(ctx, db, "."); err != nil {
			logrus.WithError(err).Fatal("Failed to run migrations")
		}
		logrus.Info("Database migrations applied")
	}

	sender, closeSender, err := newMailSender(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to configure mail transport")
	}
	defer closeSender()

	limiter, closeLimiter := newRateLimiter(cfg)
	defer closeLimiter()

	svc, err := newServices(ctx, cfg, db, sender)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to build services")
	}

	grpcServer := startGRPCServer(cfg, svc)
	defer grpcServer.GracefulStop()

	e := newHTTPServer(cfg, svc, limiter, metrics.New())
	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("HTTP server shutdown failed")
	}
	// mail jobs must finish before the deferred closeSender runs
	if err := svc.background.Wait(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Pending mail jobs did not finish before shutdown")
	}
}

func newHTTPServer(cfg *config.Config, svc *services, limiter *ratelimit.Limiter, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Pre(echomiddleware.RemoveTrailingSlash())

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     []string{cfg.AppBaseURL},
		AllowCredentials: true,
	}))
	e.Use(echomiddleware.BodyLimit(bodyLimit(cfg.Media.MaxUploadBytes)))
	e.Use(m.Middleware())

	registerRoutes(e, routeDeps{
		users:    controller.NewUserController(svc.accounts, svc.sessions, cfg.Cookie, m),
		products: controller.NewProductController(svc.products),
		auth:     middleware.NewAuthMiddleware(svc.sessions),
		limiter:  limiter,
		metrics:  m,
	})
	return e
}

func startGRPCServer(cfg *config.Config, svc *services) *grpc.Server {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(inventorygrpc.LoggingUnaryInterceptor()))
	inventorygrpc.RegisterTokenServiceServer(grpcServer, inventorygrpc.NewTokenServer(svc.sessions))
	healthpb.RegisterHealthServer(grpcServer, health.NewServer())

	go func() {
		logrus.WithField("addr", grpcAddr).Info("Starting gRPC server")
		if err := grpcServer.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("Failed to start gRPC server")
		}
	}()
	return grpcServer
}

// bodyLimit leaves room for several images plus form fields in one multipart request.
func bodyLimit(maxUploadBytes int64) string {
	mb := maxUploadBytes*10/(1<<20) + 1
	return strconv.FormatInt(mb, 10) + "M"
}
