package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quietfen/chessd/internal/acceptor"
	"github.com/quietfen/chessd/internal/adminhttp"
	appcfg "github.com/quietfen/chessd/internal/config"
	"github.com/quietfen/chessd/internal/dispatcher"
	"github.com/quietfen/chessd/internal/errcat"
	"github.com/quietfen/chessd/internal/match"
	"github.com/quietfen/chessd/internal/obslog"
	"github.com/quietfen/chessd/internal/session"
	"github.com/quietfen/chessd/internal/store"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.Load("")
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logging init error: %v", err)
	}
	logger := obslog.L()

	connString := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	db, err := store.Open(connString)
	if err != nil {
		logger.Fatal("store: open failed", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.RunMigrations(ctx, db); err != nil {
		logger.Fatal("store: migrations failed", zap.Error(err))
	}

	errCatalog, err := errcat.New(os.Getenv("ERROR_CATALOG_OVERRIDE_DIR"))
	if err != nil {
		logger.Fatal("errcat: load failed", zap.Error(err))
	}

	users := store.NewUserStore(db)
	games := store.NewGameStore(db)
	sessionDB := store.NewSessionStore(db)

	sessions := session.New(sessionDB, cfg.SessionTimeoutSeconds)

	// acceptorServer is assigned after construction below; the broadcast
	// closure only fires once connections exist, by which point it is set.
	var acceptorServer *acceptor.Server
	broadcast := func(userID int64, message any) {
		connID, ok := sessions.ConnIDForUser(userID)
		if !ok {
			return
		}
		b, err := json.Marshal(message)
		if err != nil {
			logger.Error("main: broadcast marshal failed", zap.Error(err))
			return
		}
		acceptorServer.SendToConn(connID, b)
	}

	matches := match.New(users, games, broadcast)
	dispatch := dispatcher.New(sessions, sessionDB, matches, users, games, errCatalog, cfg.AIDefaultDepth)
	acceptorServer = acceptor.New(dispatch)

	admin := adminhttp.New(func(ctx context.Context) adminhttp.Stats {
		return adminhttp.Stats{
			ActiveGames:       matches.GetActiveGameCount(),
			PendingChallenges: matches.GetPendingChallengeCount(),
			ActiveSessions:    sessionDB.Count(ctx),
		}
	})

	go sessions.RunCleanupLoop(ctx, time.Duration(cfg.SessionSweepIntervalSeconds)*time.Second)

	errCh := make(chan error, 2)
	go func() {
		errCh <- admin.Serve(ctx, fmt.Sprintf(":%d", cfg.AdminPort))
	}()
	go func() {
		errCh <- acceptorServer.Serve(ctx, fmt.Sprintf(":%d", cfg.ListenPort))
	}()

	logger.Info("chessd: started",
		zap.Int("listen_port", cfg.ListenPort), zap.Int("admin_port", cfg.AdminPort))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("chessd: shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("chessd: server exited", zap.Error(err))
		}
	}
	cancel()
}
