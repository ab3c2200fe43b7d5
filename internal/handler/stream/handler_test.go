package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/qinyuanli/bubblechat/backend/internal/model/character"
	"github.com/qinyuanli/bubblechat/backend/internal/model/chat"
	"github.com/qinyuanli/bubblechat/backend/internal/model/sticker"
	chatservice "github.com/qinyuanli/bubblechat/backend/internal/service/chat"
	"github.com/qinyuanli/bubblechat/backend/internal/store"
)

type scriptedInvoker struct {
	chunks []string
	err    error
}

func (f *scriptedInvoker) StreamingEnabled() bool { return true }

func (f *scriptedInvoker) GenerateReply(context.Context, *character.Character, []*schema.Message, string) (*schema.Message, error) {
	return nil, f.err
}

func (f *scriptedInvoker) StreamReply(context.Context, *character.Character, []*schema.Message, string) (*schema.StreamReader[*schema.Message], error) {
	sr, sw := schema.Pipe[*schema.Message](len(f.chunks) + 1)
	go func() {
		defer sw.Close()
		for _, chunk := range f.chunks {
			if sw.Send(schema.AssistantMessage(chunk, nil), nil) {
				return
			}
		}
		if f.err != nil {
			sw.Send(nil, f.err)
		}
	}()
	return sr, nil
}

func setupHandler(inv chatservice.ModelInvoker) (*Handler, *chatservice.Service, *chatservice.TurnGuard) {
	messages := store.NewMemoryStore()
	stickers := sticker.NewMemoryStore(sticker.Seed())
	characters := character.NewMemoryStore(character.Seed())
	chatSvc := chatservice.NewService(messages, inv, stickers)
	guard := chatservice.NewTurnGuard()
	return New(chatSvc, characters, guard), chatSvc, guard
}

func firstCharacterID() string {
	return character.Seed()[0].ID
}

func TestHandleTurnRequestStreamsEvents(t *testing.T) {
	handler, chatSvc, _ := setupHandler(&scriptedInvoker{chunks: []string{"想你了|||[sticker:happy_cat]"}})
	characterID := firstCharacterID()

	resp := httptest.NewRecorder()
	if err := handler.HandleTurnRequest(context.Background(), resp, characterID, "在干嘛", ""); err != nil {
		t.Fatalf("HandleTurnRequest err: %v", err)
	}

	if got := resp.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type: %s", got)
	}
	body := resp.Body.String()
	for _, want := range []string{`"event":"start"`, `"event":"delta"`, `"event":"message"`, `"event":"end"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s in stream:\n%s", want, body)
		}
	}
	if !strings.Contains(body, `"kind":"sticker"`) {
		t.Fatalf("sticker bubble missing from stream:\n%s", body)
	}

	transcript, err := chatSvc.Transcript(context.Background(), characterID)
	if err != nil {
		t.Fatalf("Transcript err: %v", err)
	}
	if len(transcript) != 3 {
		t.Fatalf("expected user message plus 2 bubbles, got %d", len(transcript))
	}
}

func TestHandleTurnRequestUnknownCharacter(t *testing.T) {
	handler, _, _ := setupHandler(&scriptedInvoker{chunks: []string{"hi"}})

	resp := httptest.NewRecorder()
	if err := handler.HandleTurnRequest(context.Background(), resp, "non-existent", "hello", ""); err != nil {
		t.Fatalf("HandleTurnRequest err: %v", err)
	}
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestHandleTurnRequestBusyCharacter(t *testing.T) {
	handler, _, guard := setupHandler(&scriptedInvoker{chunks: []string{"hi"}})
	characterID := firstCharacterID()

	if !guard.TryAcquire(characterID) {
		t.Fatal("test setup: guard acquire failed")
	}
	defer guard.Release(characterID)

	resp := httptest.NewRecorder()
	if err := handler.HandleTurnRequest(context.Background(), resp, characterID, "在吗", ""); err != nil {
		t.Fatalf("HandleTurnRequest err: %v", err)
	}
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
}

func TestHandleTurnRequestReusesTrailingUserMessage(t *testing.T) {
	handler, chatSvc, _ := setupHandler(&scriptedInvoker{chunks: []string{"好呀"}})
	characterID := firstCharacterID()

	posted, err := chatSvc.PostUserMessage(context.Background(), characterID, chat.NewText("去喝咖啡？"))
	if err != nil {
		t.Fatalf("PostUserMessage err: %v", err)
	}

	resp := httptest.NewRecorder()
	if err := handler.HandleTurnRequest(context.Background(), resp, characterID, "去喝咖啡？", ""); err != nil {
		t.Fatalf("HandleTurnRequest err: %v", err)
	}

	transcript, err := chatSvc.Transcript(context.Background(), characterID)
	if err != nil {
		t.Fatalf("Transcript err: %v", err)
	}
	users := 0
	for _, m := range transcript {
		if m.Role == chat.RoleUser {
			users++
			if m.ID != posted.ID {
				t.Fatalf("unexpected user message id: %s", m.ID)
			}
		}
	}
	if users != 1 {
		t.Fatalf("reconnect duplicated the user message: %d copies", users)
	}
}

func TestHandleTurnRequestByMessageID(t *testing.T) {
	handler, chatSvc, _ := setupHandler(&scriptedInvoker{chunks: []string{"收到"}})
	characterID := firstCharacterID()

	posted, err := chatSvc.PostUserMessage(context.Background(), characterID, chat.NewSticker("stk-003"))
	if err != nil {
		t.Fatalf("PostUserMessage err: %v", err)
	}

	resp := httptest.NewRecorder()
	if err := handler.HandleTurnRequest(context.Background(), resp, characterID, "", posted.ID); err != nil {
		t.Fatalf("HandleTurnRequest err: %v", err)
	}
	if !strings.Contains(resp.Body.String(), `"event":"end"`) {
		t.Fatalf("turn did not finish:\n%s", resp.Body.String())
	}
}

func TestHandleTurnRequestFaultEmitsErrorEvent(t *testing.T) {
	handler, chatSvc, _ := setupHandler(&scriptedInvoker{err: context.DeadlineExceeded})
	characterID := firstCharacterID()

	resp := httptest.NewRecorder()
	err := handler.HandleTurnRequest(context.Background(), resp, characterID, "在吗", "")
	if err == nil {
		t.Fatal("expected the turn fault to surface")
	}
	if !strings.Contains(resp.Body.String(), `"event":"error"`) {
		t.Fatalf("missing error event:\n%s", resp.Body.String())
	}

	transcript, err := chatSvc.Transcript(context.Background(), characterID)
	if err != nil {
		t.Fatalf("Transcript err: %v", err)
	}
	if len(transcript) != 2 {
		t.Fatalf("expected user message plus error bubble, got %d", len(transcript))
	}
}
