package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/qinyuanli/bubblechat/backend/internal/config"
	"github.com/qinyuanli/bubblechat/backend/internal/handler"
	"github.com/qinyuanli/bubblechat/backend/internal/model/character"
	"github.com/qinyuanli/bubblechat/backend/internal/model/sticker"
	"github.com/qinyuanli/bubblechat/backend/internal/service/ai"
	"github.com/qinyuanli/bubblechat/backend/internal/service/chat"
	"github.com/qinyuanli/bubblechat/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize catalogs
	characterStore := character.NewMemoryStore(character.Seed())
	stickerStore := sticker.NewMemoryStore(sticker.Seed())

	// Initialize message store
	messageStore, closeStore, err := newMessageStore(cfg.Store)
	if err != nil {
		log.Fatalf("failed to initialize message store: %v", err)
	}
	if closeStore != nil {
		defer closeStore()
	}

	// Initialize AI service
	var aiService *ai.Service
	if cfg.AI.Enabled() {
		aiService, err = ai.NewService(ctx, stickerStore, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality - 请检查 Ark 模型相关环境变量")
		} else {
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("Ark 凭证未配置，跳过 AI 功能初始化")
	}

	// The turn service always exists so transcript CRUD works without a
	// model; turn endpoints stay gated on aiService in the router.
	var invoker chat.ModelInvoker
	if aiService != nil {
		invoker = aiService
	}
	chatService := chat.NewService(messageStore, invoker, stickerStore)

	router := handler.NewRouter(characterStore, stickerStore, chatService, aiService)

	startServer(ctx, cfg.Server, router)
}

func newMessageStore(storeCfg config.StoreConfig) (store.MessageStore, func(), error) {
	switch storeCfg.Driver {
	case config.StoreDriverSQLite:
		sqliteStore, err := store.NewSQLiteStore(storeCfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("message store: sqlite at %s", storeCfg.SQLitePath)
		return sqliteStore, func() {
			if err := sqliteStore.Close(); err != nil {
				log.Printf("warning: failed to close sqlite store: %v", err)
			}
		}, nil
	default:
		log.Println("message store: in-memory")
		return store.NewMemoryStore(), nil, nil
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Bubblechat backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
