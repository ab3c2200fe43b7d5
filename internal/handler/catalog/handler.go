package catalog

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/qinyuanli/bubblechat/backend/internal/model/character"
	"github.com/qinyuanli/bubblechat/backend/internal/model/sticker"
)

// Handler 角色与表情包目录的HTTP处理器
type Handler struct {
	characters character.Store
	stickers   sticker.Store
}

// New 创建目录处理器
func New(characters character.Store, stickers sticker.Store) *Handler {
	return &Handler{
		characters: characters,
		stickers:   stickers,
	}
}

// RegisterRoutes 注册目录相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/characters", h.handleListCharacters)
	r.Get("/characters/{characterID}", h.handleGetCharacter)
	r.Get("/stickers", h.handleListStickers)
}

// handleListCharacters 列出所有可聊天的角色
func (h *Handler) handleListCharacters(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.characters.List())
}

// handleGetCharacter 查询单个角色
func (h *Handler) handleGetCharacter(w http.ResponseWriter, r *http.Request) {
	characterID := chi.URLParam(r, "characterID")
	char, ok := h.characters.FindByID(characterID)
	if !ok {
		h.respondError(w, http.StatusNotFound, "character not found")
		return
	}
	h.respondJSON(w, http.StatusOK, char)
}

// handleListStickers 列出表情包目录，前端据此把stickerId渲染成图片
func (h *Handler) handleListStickers(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.stickers.List())
}

// respondJSON 发送JSON响应
func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondError 发送错误响应
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
