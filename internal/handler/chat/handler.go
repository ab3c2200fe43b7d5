package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/qinyuanli/bubblechat/backend/internal/model/character"
	"github.com/qinyuanli/bubblechat/backend/internal/model/chat"
	chatService "github.com/qinyuanli/bubblechat/backend/internal/service/chat"
	"github.com/qinyuanli/bubblechat/backend/internal/store"
)

// Handler 聊天记录的HTTP处理器
type Handler struct {
	chatSvc    *chatService.Service
	characters character.Store
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, characters character.Store) *Handler {
	return &Handler{
		chatSvc:    chatSvc,
		characters: characters,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/characters/{characterID}/messages", func(msgs chi.Router) {
		msgs.Get("/", h.handleListMessages)
		msgs.Post("/", h.handlePostMessage)
		msgs.Delete("/", h.handleClearConversation)
	})
	r.Patch("/messages/{messageID}", h.handleEditMessage)
	r.Delete("/messages/{messageID}", h.handleDeleteMessage)
}

// handleListMessages 按展示顺序返回一个角色的全部聊天记录
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	characterID := chi.URLParam(r, "characterID")
	if _, ok := h.characters.FindByID(characterID); !ok {
		respondError(w, http.StatusNotFound, "character not found")
		return
	}

	messages, err := h.chatSvc.Transcript(r.Context(), characterID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	respondJSON(w, http.StatusOK, messages)
}

// handlePostMessage 保存一条用户发出的消息
func (h *Handler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	characterID := chi.URLParam(r, "characterID")
	if _, ok := h.characters.FindByID(characterID); !ok {
		respondError(w, http.StatusNotFound, "character not found")
		return
	}

	var payload chat.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message, err := h.chatSvc.PostUserMessage(r.Context(), characterID, payload)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, message)
}

// handleEditMessage 修改一条文本消息的内容，时间戳保持不变
func (h *Handler) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")

	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message, err := h.chatSvc.EditMessage(r.Context(), messageID, payload.Content)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			respondError(w, http.StatusNotFound, "message not found")
		case errors.Is(err, chatService.ErrNotEditable):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "failed to edit message")
		}
		return
	}

	respondJSON(w, http.StatusOK, message)
}

// handleDeleteMessage 删除单条消息
func (h *Handler) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")

	if err := h.chatSvc.DeleteMessage(r.Context(), messageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "message not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete message")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleClearConversation 清空一个角色的聊天记录
func (h *Handler) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	characterID := chi.URLParam(r, "characterID")
	if _, ok := h.characters.FindByID(characterID); !ok {
		respondError(w, http.StatusNotFound, "character not found")
		return
	}

	if err := h.chatSvc.ClearConversation(r.Context(), characterID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to clear conversation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// respondJSON 发送JSON响应
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondError 发送错误响应
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
