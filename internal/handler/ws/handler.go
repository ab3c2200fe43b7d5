package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/qinyuanli/bubblechat/backend/internal/model/character"
	"github.com/qinyuanli/bubblechat/backend/internal/model/chat"
	chatService "github.com/qinyuanli/bubblechat/backend/internal/service/chat"
)

// Handler WebSocket聊天处理器
type Handler struct {
	chatSvc    *chatService.Service
	characters character.Store
	guard      *chatService.TurnGuard
	upgrader   websocket.Upgrader
}

// New 创建WebSocket处理器
func New(chatSvc *chatService.Service, characters character.Store, guard *chatService.TurnGuard) *Handler {
	return &Handler{
		chatSvc:    chatSvc,
		characters: characters,
		guard:      guard,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{characterID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// TextMessage 纯文本聊天输入
type TextMessage struct {
	Text string `json:"text"`
}

// PayloadMessage 结构化聊天输入，用户主动发表情包或转账时使用
type PayloadMessage struct {
	Payload chat.Payload `json:"payload"`
}

type outgoingMessage struct {
	Type        string      `json:"type"`
	CharacterID string      `json:"characterId,omitempty"`
	Data        interface{} `json:"data,omitempty"`
	Timestamp   int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接，一条连接对应一个角色会话
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	characterID := chi.URLParam(r, "characterID")
	char, ok := h.characters.FindByID(characterID)
	if !ok {
		http.Error(w, "character not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection for character: %s", characterID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	go h.pingLoop(ctx, conn)

	h.sendInfo(conn, characterID, map[string]any{
		"type":      "connected",
		"character": char.ID,
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[websocket] read error: %v", err)
				}
				return
			}

			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			h.handleMessage(ctx, conn, &char, &msg)
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, char *character.Character, msg *inboundMessage) {
	switch msg.Type {
	case "message":
		var incoming TextMessage
		if err := json.Unmarshal(msg.Data, &incoming); err != nil {
			h.sendError(conn, "invalid message payload")
			return
		}
		h.runTurn(ctx, conn, char, chat.NewText(incoming.Text))
	case "payload":
		var incoming PayloadMessage
		if err := json.Unmarshal(msg.Data, &incoming); err != nil {
			h.sendError(conn, "invalid message payload")
			return
		}
		h.runTurn(ctx, conn, char, incoming.Payload)
	default:
		h.sendError(conn, "unsupported message type: "+msg.Type)
	}
}

// runTurn 保存用户消息并同步跑完一轮回复，回复气泡逐条推给客户端
func (h *Handler) runTurn(ctx context.Context, conn *websocket.Conn, char *character.Character, payload chat.Payload) {
	if !h.guard.TryAcquire(char.ID) {
		h.sendError(conn, chatService.ErrTurnActive.Error())
		return
	}
	defer h.guard.Release(char.ID)

	userMsg, err := h.chatSvc.PostUserMessage(ctx, char.ID, payload)
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}

	h.sendInfo(conn, char.ID, map[string]any{
		"type":    "user",
		"message": userMsg,
	})

	var placeholderID string
	events := chatService.TurnEvents{
		OnPlaceholder: func(m chat.Message) {
			placeholderID = m.ID
			h.sendInfo(conn, char.ID, map[string]any{"type": "start", "message": m})
		},
		OnDelta: func(text string) {
			h.sendInfo(conn, char.ID, map[string]any{"type": "delta", "text": text})
		},
		OnFinalized: func(batch []chat.Message) {
			for _, m := range batch {
				h.sendInfo(conn, char.ID, map[string]any{"type": "message", "message": m})
			}
		},
	}

	if _, err := h.chatSvc.RunTurn(ctx, char, userMsg, events); err != nil {
		if ctx.Err() != nil {
			return
		}
		fault := map[string]any{"type": "error"}
		if placeholderID != "" {
			if bubble, bubbleErr := h.chatSvc.GetMessage(ctx, placeholderID); bubbleErr == nil {
				fault["message"] = bubble
			}
		}
		h.sendInfo(conn, char.ID, fault)
		return
	}

	h.sendInfo(conn, char.ID, map[string]any{"type": "end"})
}

func (h *Handler) sendInfo(conn *websocket.Conn, characterID string, data map[string]any) {
	msg := outgoingMessage{
		Type:        "result",
		CharacterID: characterID,
		Data:        data,
		Timestamp:   time.Now().Unix(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write info failed: %v", err)
	}
}

func (h *Handler) sendError(conn *websocket.Conn, message string) {
	msg := outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write error failed: %v", err)
	}
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
