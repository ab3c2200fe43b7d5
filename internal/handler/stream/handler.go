package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/qinyuanli/bubblechat/backend/internal/model/character"
	"github.com/qinyuanli/bubblechat/backend/internal/model/chat"
	chatService "github.com/qinyuanli/bubblechat/backend/internal/service/chat"
	"github.com/qinyuanli/bubblechat/backend/pkg/utils"
)

// Handler streams conversational turns via Server-Sent Events
type Handler struct {
	chatSvc    *chatService.Service
	characters character.Store
	guard      *chatService.TurnGuard
}

// New creates a new stream handler
func New(chatSvc *chatService.Service, characters character.Store, guard *chatService.TurnGuard) *Handler {
	return &Handler{
		chatSvc:    chatSvc,
		characters: characters,
		guard:      guard,
	}
}

// StreamResponse represents one streaming event. Bubbles travel in Message;
// Delta carries raw text for typing indicators only.
type StreamResponse struct {
	Event       string        `json:"event"`
	CharacterID string        `json:"characterId,omitempty"`
	Delta       string        `json:"delta,omitempty"`
	Message     *chat.Message `json:"message,omitempty"`
	Finished    bool          `json:"finished,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// HandleTurnRequest runs one conversational turn over SSE. All request
// validation happens before the stream opens so busy and not-found outcomes
// are real HTTP statuses; once SSE is flowing, faults become error events.
func (h *Handler) HandleTurnRequest(ctx context.Context, w http.ResponseWriter, characterID, message, messageID string) error {
	char, ok := h.characters.FindByID(characterID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "character not found")
		return nil
	}

	userMsg, status, err := h.resolveUserMessage(ctx, characterID, message, messageID)
	if err != nil {
		utils.RespondError(w, status, err.Error())
		return nil
	}

	if !h.guard.TryAcquire(characterID) {
		utils.RespondError(w, http.StatusConflict, chatService.ErrTurnActive.Error())
		return nil
	}
	defer h.guard.Release(characterID)

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return nil
	}
	utils.SetupSSEHeaders(w)

	log.Printf("[stream] turn started character=%s message=%s", characterID, userMsg.ID)

	var placeholderID string
	events := chatService.TurnEvents{
		OnPlaceholder: func(m chat.Message) {
			placeholderID = m.ID
			h.sendSSE(w, flusher, StreamResponse{Event: "start", CharacterID: characterID, Message: &m})
		},
		OnDelta: func(text string) {
			h.sendSSE(w, flusher, StreamResponse{Event: "delta", CharacterID: characterID, Delta: text})
		},
		OnFinalized: func(batch []chat.Message) {
			for i := range batch {
				h.sendSSE(w, flusher, StreamResponse{Event: "message", CharacterID: characterID, Message: &batch[i]})
			}
		},
	}

	if _, err := h.chatSvc.RunTurn(ctx, &char, userMsg, events); err != nil {
		h.sendTurnFault(ctx, w, flusher, characterID, placeholderID)
		return err
	}

	h.sendSSE(w, flusher, StreamResponse{Event: "end", CharacterID: characterID, Finished: true})
	log.Printf("[stream] turn completed character=%s", characterID)
	return nil
}

// resolveUserMessage picks the message that opens the turn: an existing one
// by id, or the supplied text. A trailing identical user message is reused so
// an EventSource reconnect does not double-post.
func (h *Handler) resolveUserMessage(ctx context.Context, characterID, message, messageID string) (chat.Message, int, error) {
	if messageID != "" {
		m, err := h.chatSvc.GetMessage(ctx, messageID)
		if err != nil {
			return chat.Message{}, http.StatusNotFound, fmt.Errorf("message not found")
		}
		if m.CharacterID != characterID {
			return chat.Message{}, http.StatusBadRequest, fmt.Errorf("message belongs to another conversation")
		}
		if m.Role != chat.RoleUser {
			return chat.Message{}, http.StatusBadRequest, fmt.Errorf("only user messages can open a turn")
		}
		return m, 0, nil
	}

	transcript, err := h.chatSvc.Transcript(ctx, characterID)
	if err == nil && len(transcript) > 0 {
		last := transcript[len(transcript)-1]
		if last.Role == chat.RoleUser && last.Payload.Kind == chat.KindText && last.Payload.Text == message {
			return last, 0, nil
		}
	}

	m, err := h.chatSvc.PostUserMessage(ctx, characterID, chat.NewText(message))
	if err != nil {
		return chat.Message{}, http.StatusBadRequest, err
	}
	return m, 0, nil
}

// sendTurnFault reports a failed turn. The persisted error bubble rides along
// when it exists; a cancelled turn has nothing to report.
func (h *Handler) sendTurnFault(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, characterID, placeholderID string) {
	if ctx.Err() != nil {
		return
	}
	response := StreamResponse{Event: "error", CharacterID: characterID, Error: "model turn failed", Finished: true}
	if placeholderID != "" {
		if bubble, err := h.chatSvc.GetMessage(ctx, placeholderID); err == nil {
			response.Message = &bubble
		}
	}
	h.sendSSE(w, flusher, response)
}

// sendSSE sends a Server-Sent Event
func (h *Handler) sendSSE(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		log.Printf("failed to marshal SSE response: %v", err)
		return
	}

	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
