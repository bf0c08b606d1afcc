package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Leganyst/coaching-platform/internal/config"
	"github.com/Leganyst/coaching-platform/internal/db"
	"github.com/Leganyst/coaching-platform/internal/logging"
	"github.com/Leganyst/coaching-platform/internal/model"
	"github.com/Leganyst/coaching-platform/internal/repository"
	"github.com/Leganyst/coaching-platform/internal/service"
	"github.com/Leganyst/coaching-platform/internal/transport/grpcapi"
)

func main() {
	// 1. Загружаем .env и конфиг.
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("load .env: %v", err)
	}
	appCfg, err := config.LoadAppConfig()
	if err != nil {
		log.Fatalf("load app config: %v", err)
	}
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		log.Fatalf("load db config: %v", err)
	}

	logger, err := logging.New(appCfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// 2. Подключаемся к БД и мигрируем модели.
	gormDB, err := db.NewGormDB(dbCfg)
	if err != nil {
		logger.Fatal("init db", zap.Error(err))
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		logger.Fatal("auto migrate", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("sql DB", zap.Error(err))
	}
	defer sqlDB.Close()

	// 3. Сервисы делят одно хранилище и одну таблицу блокировок.
	deps := service.Deps{
		Store:  repository.NewStore(gormDB),
		Locks:  service.NewKeyedMutex(),
		Logger: logger,
		Policy: service.Policy{
			RefundGrace:        appCfg.RefundGrace,
			DefaultSlotMinutes: appCfg.DefaultSlotMinutes,
		},
	}
	scheduling := service.NewSchedulingService(deps)
	assignments := service.NewAssignmentService(deps)
	availability := service.NewAvailabilityService(deps)
	packages := service.NewPackageService(deps, scheduling)

	jobs := service.NewJobs(deps, assignments, packages, scheduling)
	if appCfg.JobsEnabled {
		if err := jobs.Start(appCfg.JobsCron); err != nil {
			logger.Fatal("start jobs", zap.Error(err))
		}
	}

	// 4. Настраиваем gRPC-сервер.
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcapi.UnaryLogging(logger.Named("grpc"))))
	grpcapi.Register(grpcServer, grpcapi.NewServer(grpcapi.Services{
		Scheduling:   scheduling,
		Assignments:  assignments,
		Availability: availability,
		Packages:     packages,
	}, logger))

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus(grpcapi.ServiceName, healthpb.HealthCheckResponse_SERVING)
	if !appCfg.IsProduction() {
		reflection.Register(grpcServer)
	}

	lis, err := net.Listen("tcp", appCfg.GRPCAddr)
	if err != nil {
		logger.Fatal("listen", zap.String("addr", appCfg.GRPCAddr), zap.Error(err))
	}
	logger.Info("core gRPC server listening", zap.String("addr", appCfg.GRPCAddr))

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal("grpc serve", zap.Error(err))
		}
	}()

	// 5. Грейсфул-шатдаун по сигналу.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	healthSrv.Shutdown()
	grpcServer.GracefulStop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	jobs.Stop(ctx)
}
