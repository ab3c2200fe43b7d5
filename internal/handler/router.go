package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/qinyuanli/bubblechat/backend/internal/handler/catalog"
	"github.com/qinyuanli/bubblechat/backend/internal/handler/chat"
	"github.com/qinyuanli/bubblechat/backend/internal/handler/stream"
	"github.com/qinyuanli/bubblechat/backend/internal/handler/ws"
	middlewarePkg "github.com/qinyuanli/bubblechat/backend/internal/middleware"
	characterModel "github.com/qinyuanli/bubblechat/backend/internal/model/character"
	stickerModel "github.com/qinyuanli/bubblechat/backend/internal/model/sticker"
	aiService "github.com/qinyuanli/bubblechat/backend/internal/service/ai"
	chatService "github.com/qinyuanli/bubblechat/backend/internal/service/chat"
	"github.com/qinyuanli/bubblechat/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(characters characterModel.Store, stickers stickerModel.Store, chatSvc *chatService.Service, aiSvc *aiService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	// Create handlers; model turns on one character are serialized by a
	// guard shared between the SSE and WebSocket transports.
	guard := chatService.NewTurnGuard()
	catalogHandler := catalog.New(characters, stickers)
	chatHandler := chat.New(chatSvc, characters)

	var streamHandler *stream.Handler
	var wsHandler *ws.Handler
	if aiSvc != nil {
		streamHandler = stream.New(chatSvc, characters, guard)
		wsHandler = ws.New(chatSvc, characters, guard)
	}

	r.Route("/api", func(api chi.Router) {
		catalogHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)

		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":          "healthy",
				"service":         "bubblechat",
				"modelConfigured": aiSvc != nil,
			})
		})

		// Conversational turn endpoints need a configured model
		api.Get("/stream/{characterID}", func(w http.ResponseWriter, r *http.Request) {
			if streamHandler == nil {
				utils.RespondError(w, http.StatusServiceUnavailable, chatService.ErrModelUnavailable.Error())
				return
			}

			characterID := chi.URLParam(r, "characterID")
			message := r.URL.Query().Get("message")
			messageID := r.URL.Query().Get("messageId")
			if message == "" && messageID == "" {
				utils.RespondError(w, http.StatusBadRequest, "message or messageId query parameter is required")
				return
			}

			if err := streamHandler.HandleTurnRequest(r.Context(), w, characterID, message, messageID); err != nil {
				log.Printf("[stream] error handling turn: %v", err)
			}
		})

		if wsHandler != nil {
			wsHandler.RegisterRoutes(api)
		} else {
			api.Get("/ws/{characterID}", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, chatService.ErrModelUnavailable.Error())
			})
		}
	})

	return r
}
