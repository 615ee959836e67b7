package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/trapgate/internal/audit"
	"github.com/xela07ax/trapgate/internal/capability"
	"github.com/xela07ax/trapgate/internal/domain"
	"github.com/xela07ax/trapgate/internal/engine"
	"github.com/xela07ax/trapgate/internal/infra"
	"github.com/xela07ax/trapgate/internal/ops"
	"github.com/xela07ax/trapgate/internal/platform/discord"
	"github.com/xela07ax/trapgate/internal/provision"
	"github.com/xela07ax/trapgate/internal/registry"
	"github.com/xela07ax/trapgate/internal/repository/postgres"
	"github.com/xela07ax/trapgate/internal/router"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	// Контекст жизненного цикла фоновых горутин
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура: Postgres (реестр + аудит)
	initCtx, initCancel := context.WithTimeout(appCtx, 10*time.Second)
	pool, err := postgres.NewPool(initCtx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	honeypotRepo := postgres.NewHoneypotRepo(pool)
	if err := honeypotRepo.Ping(initCtx); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := honeypotRepo.EnsureSchema(initCtx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	auditRepo := postgres.NewAuditRepo(pool)
	if err := auditRepo.EnsureSchema(initCtx); err != nil {
		log.Fatalf("schema: %v", err)
	}

	// 3. Реестр ловушек: холодная загрузка строго ДО старта шлюза,
	// чтобы не отвечать ложное «не ловушка» из-за гонки со стартом
	reg := registry.New(honeypotRepo, logger)
	if err := reg.Load(initCtx); err != nil {
		log.Fatalf("registry load: %v", err)
	}
	initCancel()

	// 4. Control Plane: пауза энфорсмента (Redis опционален)
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	pause := engine.NewPauseSwitch(rdb, logger)
	if err := pause.Init(appCtx); err != nil {
		logger.Error("pause switch init failed, starting armed", zap.Error(err))
	}
	go pause.StartListener(appCtx)

	// 5. Платформа: REST-клиент, учётка бота, регистрация команд
	api := discord.NewClient(cfg.Discord.APIBase, cfg.Discord.Token, logger)

	identCtx, identCancel := context.WithTimeout(appCtx, 15*time.Second)
	me, err := api.Identity(identCtx)
	if err != nil {
		log.Fatalf("platform identity: %v", err)
	}
	if err := api.RegisterCommands(identCtx, cfg.Discord.AppID, discord.AdminCommands()); err != nil {
		// Не фатально: старые команды продолжают работать
		logger.Error("command registration failed", zap.Error(err))
	}
	identCancel()

	logger.Info("logged in",
		zap.String("bot_id", me.ID),
		zap.String("username", me.Username))
	fmt.Printf("Invite: %s\n", discord.InviteURL(cfg.Discord.AppID))

	// 6. Метрики и след аудита
	promReg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(promReg)

	trail := audit.NewTrail(auditRepo, logger)
	trail.Start()
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-appCtx.Done():
				return
			case <-ticker.C:
				metrics.AuditBufferFill.Set(float64(trail.Len()))
			}
		}
	}()

	// 7. Ядро: оценщик прав -> исполнитель -> роутер
	eval := &capability.Evaluator{CheckHierarchy: cfg.Enforce.CheckHierarchy}
	executor := engine.NewExecutor(api, eval, trail, metrics, logger, me.ID, cfg.Enforce.NativeDeleteWindow)
	prov := provision.New(api, reg, trail, logger)
	rtr := router.New(reg, executor, pause, prov, api, metrics, logger,
		cfg.Enforce.PurgeWindow, cfg.Enforce.Reason)

	// 8. Шлюз событий
	gw := discord.NewGateway(cfg.Discord.GatewayURL, cfg.Discord.Token,
		func(ctx context.Context, ev domain.Event) { rtr.Dispatch(ctx, ev) },
		metrics.GatewayReconnects, logger)
	go gw.Run(appCtx)

	// 9. Служебный HTTP-сервер (health / metrics / реестр / пауза)
	opsSrv := ops.NewServer(logger, reg, pause, promReg)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      opsSrv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("ops server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 10. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("trapgate stopping...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown failed", zap.Error(err))
	}

	cancel()      // останавливает шлюз и слушателей
	trail.Stop()  // финальный flush аудита
	logger.Info("trapgate exited properly")
}
