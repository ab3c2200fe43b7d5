package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/qinyuanli/bubblechat/backend/internal/analysis/richtag"
	"github.com/qinyuanli/bubblechat/backend/internal/model/character"
	"github.com/qinyuanli/bubblechat/backend/internal/model/chat"
	"github.com/qinyuanli/bubblechat/backend/internal/model/sticker"
	"github.com/qinyuanli/bubblechat/backend/internal/segment"
	"github.com/qinyuanli/bubblechat/backend/internal/store"
)

var (
	ErrTurnActive       = errors.New("character already has an active turn")
	ErrModelUnavailable = errors.New("model invocation is not configured")
	ErrNotEditable      = errors.New("only text bubbles can be edited")
	ErrEmptyPayload     = errors.New("message payload is required")
)

// ModelInvoker is the slice of the AI service a turn needs. The indirection
// keeps turns testable against fake streams.
type ModelInvoker interface {
	StreamingEnabled() bool
	GenerateReply(ctx context.Context, char *character.Character, history []*schema.Message, query string) (*schema.Message, error)
	StreamReply(ctx context.Context, char *character.Character, history []*schema.Message, query string) (*schema.StreamReader[*schema.Message], error)
}

// TurnEvents carries optional callbacks for live transports. Nil fields are
// skipped; callbacks run on the turn's goroutine.
type TurnEvents struct {
	// OnPlaceholder fires once the pending bubble is persisted and visible.
	OnPlaceholder func(m chat.Message)
	// OnDelta forwards raw streamed text for typing indicators. Deltas are
	// not persisted; bubbles only exist once the turn finalizes.
	OnDelta func(text string)
	// OnFinalized fires after the batch atomically replaced the placeholder.
	OnFinalized func(batch []chat.Message)
}

func (e TurnEvents) placeholder(m chat.Message) {
	if e.OnPlaceholder != nil {
		e.OnPlaceholder(m)
	}
}

func (e TurnEvents) delta(text string) {
	if e.OnDelta != nil {
		e.OnDelta(text)
	}
}

func (e TurnEvents) finalized(batch []chat.Message) {
	if e.OnFinalized != nil {
		e.OnFinalized(batch)
	}
}

// Service runs conversational turns: it seeds the model with the replayed
// transcript, splits the streamed reply into bubbles, classifies them and
// persists the finalized batch. It also fronts the message store for the
// plain CRUD the REST surface needs.
type Service struct {
	store    store.MessageStore
	invoker  ModelInvoker
	stickers sticker.Store
}

// NewService wires the turn service.
func NewService(messageStore store.MessageStore, invoker ModelInvoker, stickers sticker.Store) *Service {
	return &Service{store: messageStore, invoker: invoker, stickers: stickers}
}

// RunTurn drives one turn end to end: placeholder, stream, split, classify,
// atomic finalize. userMsg must already be persisted; callers serialize turns
// per character (see TurnGuard). On a stream fault the placeholder becomes
// the turn's single error bubble; on cancellation it is removed entirely.
func (s *Service) RunTurn(ctx context.Context, char *character.Character, userMsg chat.Message, events TurnEvents) ([]chat.Message, error) {
	if s.invoker == nil {
		return nil, ErrModelUnavailable
	}

	placeholder := chat.NewMessage(char.ID, chat.RoleModel, chat.NewText(""))
	if err := s.store.SaveMessage(ctx, &placeholder); err != nil {
		return nil, fmt.Errorf("save placeholder: %w", err)
	}
	events.placeholder(placeholder)

	history, query, err := s.primingInput(ctx, char.ID, userMsg)
	if err != nil {
		s.dropPlaceholder(ctx, placeholder.ID)
		return nil, err
	}

	segments, err := s.collectSegments(ctx, char, history, query, placeholder.ID, events)
	if err != nil {
		return nil, s.failTurn(ctx, placeholder, err)
	}

	batch := s.finalize(char.ID, segments)
	if err := s.store.FinalizeTurn(ctx, placeholder.ID, batch); err != nil {
		return nil, fmt.Errorf("finalize turn: %w", err)
	}
	log.Printf("[turn] finalized %d bubbles for character=%s", len(batch), char.ID)
	events.finalized(batch)
	return batch, nil
}

// primingInput replays the transcript for the {history} slot and renders the
// outgoing user message for the {query} slot. The user message is excluded
// from the replay so it is not presented to the model twice; the blank
// placeholder drops out inside EncodeTranscript.
func (s *Service) primingInput(ctx context.Context, characterID string, userMsg chat.Message) ([]*schema.Message, string, error) {
	transcript, err := s.store.ListByCharacter(ctx, characterID)
	if err != nil {
		return nil, "", fmt.Errorf("load transcript: %w", err)
	}
	prior := make([]chat.Message, 0, len(transcript))
	for _, m := range transcript {
		if m.ID == userMsg.ID {
			continue
		}
		prior = append(prior, m)
	}
	return EncodeTranscript(prior, s.stickers), EncodeText(userMsg, s.stickers), nil
}

func (s *Service) collectSegments(ctx context.Context, char *character.Character, history []*schema.Message, query string, placeholderID string, events TurnEvents) ([]string, error) {
	seg := segment.New(richtag.Separator)
	var parts []string

	if !s.invoker.StreamingEnabled() {
		reply, err := s.invoker.GenerateReply(ctx, char, history, query)
		if err != nil {
			return nil, err
		}
		s.markStarted(ctx, placeholderID)
		if reply != nil && reply.Content != "" {
			events.delta(reply.Content)
			parts = append(parts, seg.Feed(reply.Content)...)
		}
		return append(parts, seg.Finish()), nil
	}

	stream, err := s.invoker.StreamReply(ctx, char, history, query)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	started := false
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return nil, recvErr
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		if !started {
			started = true
			s.markStarted(ctx, placeholderID)
		}
		events.delta(chunk.Content)
		parts = append(parts, seg.Feed(chunk.Content)...)
	}
	return append(parts, seg.Finish()), nil
}

// finalize classifies the buffered segments and stamps the batch: fresh ids
// and base timestamp plus one millisecond per bubble, so order stays total
// even when the wall clock is coarser than the segment count. Segments that
// classify to blank text are dropped.
func (s *Service) finalize(characterID string, segments []string) []chat.Message {
	base := time.Now().UTC()
	batch := make([]chat.Message, 0, len(segments))
	for _, text := range segments {
		payload := richtag.Classify(text, s.stickers)
		if payload.Kind == chat.KindText && payload.Text == "" {
			continue
		}
		m := chat.NewMessage(characterID, chat.RoleModel, payload)
		m.Timestamp = base.Add(time.Duration(len(batch)) * time.Millisecond)
		batch = append(batch, m)
	}
	return batch
}

// markStarted flips the placeholder content from empty to a single space on
// the first chunk, a liveness signal for clients polling the transcript.
func (s *Service) markStarted(ctx context.Context, placeholderID string) {
	if err := s.store.UpdatePayload(ctx, placeholderID, chat.NewText(" "), false); err != nil {
		log.Printf("[turn] mark placeholder started: %v", err)
	}
}

// failTurn converts a stream fault into the turn's single persisted error
// bubble. Cancellation removes the placeholder instead: an abandoned turn
// should not materialize an error bubble afterwards, it should just be gone.
// A provider-side timeout with a live caller still counts as a fault.
func (s *Service) failTurn(ctx context.Context, placeholder chat.Message, cause error) error {
	if errors.Is(cause, context.Canceled) || ctx.Err() != nil {
		s.dropPlaceholder(ctx, placeholder.ID)
		log.Printf("[turn] cancelled for character=%s: %v", placeholder.CharacterID, cause)
		return cause
	}
	if err := s.store.UpdatePayload(context.WithoutCancel(ctx), placeholder.ID, chat.NewText(faultMessage(cause)), false); err != nil {
		log.Printf("[turn] persist error bubble: %v", err)
	}
	log.Printf("[turn] stream fault for character=%s: %v", placeholder.CharacterID, cause)
	return cause
}

func (s *Service) dropPlaceholder(ctx context.Context, placeholderID string) {
	if err := s.store.DeleteMessage(context.WithoutCancel(ctx), placeholderID); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("[turn] drop placeholder: %v", err)
	}
}

// faultMessage classifies a model-invocation failure into the user-facing
// error text. Credential problems get a message pointing at configuration;
// everything else reads as a transport fault.
func faultMessage(err error) string {
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "403") ||
		strings.Contains(lower, "api key") || strings.Contains(lower, "apikey") ||
		strings.Contains(lower, "unauthorized") || strings.Contains(lower, "authentication"):
		return "模型凭证无效，请检查 ARK_API_KEY / ARK_MODEL 配置后重试。"
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit"):
		return "请求太频繁，模型服务限流了，稍等一会儿再发。"
	default:
		return "连接模型服务失败，请稍后重试。"
	}
}

// PostUserMessage validates and persists one user-authored payload.
func (s *Service) PostUserMessage(ctx context.Context, characterID string, payload chat.Payload) (chat.Message, error) {
	if payload.Kind == "" {
		return chat.Message{}, ErrEmptyPayload
	}
	if err := payload.Validate(); err != nil {
		return chat.Message{}, err
	}
	m := chat.NewMessage(characterID, chat.RoleUser, payload)
	if err := s.store.SaveMessage(ctx, &m); err != nil {
		return chat.Message{}, fmt.Errorf("save user message: %w", err)
	}
	return m, nil
}

// Transcript returns the ordered conversation of one character.
func (s *Service) Transcript(ctx context.Context, characterID string) ([]chat.Message, error) {
	return s.store.ListByCharacter(ctx, characterID)
}

// GetMessage looks up one message by id.
func (s *Service) GetMessage(ctx context.Context, id string) (chat.Message, error) {
	return s.store.GetMessage(ctx, id)
}

// EditMessage rewrites the text of one bubble and marks it edited. The
// timestamp is untouched so display order never changes under an edit.
func (s *Service) EditMessage(ctx context.Context, id string, content string) (chat.Message, error) {
	m, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return chat.Message{}, err
	}
	if m.Payload.Kind != chat.KindText {
		return chat.Message{}, ErrNotEditable
	}
	if err := s.store.UpdatePayload(ctx, id, chat.NewText(content), true); err != nil {
		return chat.Message{}, err
	}
	m.Payload = chat.NewText(content)
	m.Edited = true
	return m, nil
}

// DeleteMessage removes one bubble.
func (s *Service) DeleteMessage(ctx context.Context, id string) error {
	return s.store.DeleteMessage(ctx, id)
}

// ClearConversation wipes one character's transcript.
func (s *Service) ClearConversation(ctx context.Context, characterID string) error {
	return s.store.ClearConversation(ctx, characterID)
}
