package grpcapp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"forum/internal/lib/sl"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health-checked service reported next to the overall
// server status.
const ServiceName = "forum"

const checkInterval = 10 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

// App serves grpc.health.v1.Health. The status follows storage
// reachability.
type App struct {
	logger     *slog.Logger
	gRPCServer *grpc.Server
	health     *health.Server
	pinger     Pinger
	port       int
	timeout    time.Duration

	stopOnce sync.Once
	done     chan struct{}
}

func New(
	logger *slog.Logger,
	pinger Pinger,
	port int,
	timeout time.Duration,
) *App {
	gRPCServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(gRPCServer, healthServer)

	return &App{
		logger:     logger,
		gRPCServer: gRPCServer,
		health:     healthServer,
		pinger:     pinger,
		port:       port,
		timeout:    timeout,
		done:       make(chan struct{}),
	}
}

func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

func (a *App) Run() error {
	const op = "grpcapp.Run"

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.port))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return a.Serve(listener)
}

// Serve accepts connections on l until Stop is called.
func (a *App) Serve(l net.Listener) error {
	const op = "grpcapp.Serve"

	log := a.logger.With(
		slog.String("op", op),
		slog.Int("port", a.port),
	)

	a.CheckStorage(context.Background())
	go a.watch()

	log.Info("gRPC server is running", slog.String("address", l.Addr().String()))

	if err := a.gRPCServer.Serve(l); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// CheckStorage pings the storage once and updates the serving status.
func (a *App) CheckStorage(ctx context.Context) {
	const op = "grpcapp.CheckStorage"

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := a.pinger.Ping(ctx); err != nil {
		a.logger.Warn("storage unreachable", slog.String("op", op), sl.Err(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	a.health.SetServingStatus("", status)
	a.health.SetServingStatus(ServiceName, status)
}

func (a *App) watch() {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			a.CheckStorage(context.Background())
		}
	}
}

func (a *App) Stop() {
	const op = "grpcapp.Stop"
	log := a.logger.With(slog.String("op", op))
	log.Info("stopping gRPC server", slog.Int("port", a.port))

	a.stopOnce.Do(func() { close(a.done) })
	a.health.Shutdown()
	a.gRPCServer.GracefulStop()
}
