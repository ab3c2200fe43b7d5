package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/qinyuanli/bubblechat/backend/internal/model/chat"
	"github.com/qinyuanli/bubblechat/backend/internal/store"
)

func TestMemoryStore(t *testing.T) {
	runMessageStoreTests(t, func(t *testing.T) store.MessageStore {
		return store.NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	runMessageStoreTests(t, func(t *testing.T) store.MessageStore {
		s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "chat.db"))
		if err != nil {
			t.Fatalf("NewSQLiteStore err: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func runMessageStoreTests(t *testing.T, newStore func(t *testing.T) store.MessageStore) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("SaveAndListKeepOrder", func(t *testing.T) {
		s := newStore(t)
		payloads := []chat.Payload{
			chat.NewText("早安"),
			chat.NewTransfer(decimal.RequireFromString("8.88"), "Good luck!"),
			chat.NewSticker("stk-001"),
		}
		for i, p := range payloads {
			m := chat.NewMessage("lin-xiaolu", chat.RoleUser, p)
			m.Timestamp = base.Add(time.Duration(i) * time.Second)
			if err := s.SaveMessage(ctx, &m); err != nil {
				t.Fatalf("SaveMessage err: %v", err)
			}
			if m.Seq == 0 {
				t.Fatal("SaveMessage left Seq unset")
			}
		}

		msgs, err := s.ListByCharacter(ctx, "lin-xiaolu")
		if err != nil {
			t.Fatalf("ListByCharacter err: %v", err)
		}
		if len(msgs) != 3 {
			t.Fatalf("expected 3 messages, got %d", len(msgs))
		}
		for i := 1; i < len(msgs); i++ {
			if !msgs[i-1].Timestamp.Before(msgs[i].Timestamp) {
				t.Fatalf("transcript out of order at %d", i)
			}
			if msgs[i-1].Seq >= msgs[i].Seq {
				t.Fatalf("seq not increasing at %d", i)
			}
		}
		if msgs[1].Payload.Kind != chat.KindTransfer {
			t.Fatalf("payload kind lost: %s", msgs[1].Payload.Kind)
		}
		if !msgs[1].Payload.Transfer.Amount.Equal(decimal.RequireFromString("8.88")) {
			t.Fatalf("transfer amount drifted: %s", msgs[1].Payload.Transfer.Amount)
		}
	})

	t.Run("GetUpdateDelete", func(t *testing.T) {
		s := newStore(t)
		m := chat.NewMessage("lin-xiaolu", chat.RoleModel, chat.NewText("原始内容"))
		if err := s.SaveMessage(ctx, &m); err != nil {
			t.Fatalf("SaveMessage err: %v", err)
		}

		got, err := s.GetMessage(ctx, m.ID)
		if err != nil {
			t.Fatalf("GetMessage err: %v", err)
		}
		if got.Payload.Text != "原始内容" {
			t.Fatalf("unexpected content: %q", got.Payload.Text)
		}

		if err := s.UpdatePayload(ctx, m.ID, chat.NewText("改过的内容"), true); err != nil {
			t.Fatalf("UpdatePayload err: %v", err)
		}
		got, err = s.GetMessage(ctx, m.ID)
		if err != nil {
			t.Fatalf("GetMessage after update err: %v", err)
		}
		if got.Payload.Text != "改过的内容" || !got.Edited {
			t.Fatalf("update not applied: %+v", got)
		}
		if !got.Timestamp.Equal(m.Timestamp) {
			t.Fatal("edit must not move the timestamp")
		}

		if err := s.DeleteMessage(ctx, m.ID); err != nil {
			t.Fatalf("DeleteMessage err: %v", err)
		}
		if _, err := s.GetMessage(ctx, m.ID); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateUnknownID", func(t *testing.T) {
		s := newStore(t)
		if err := s.UpdatePayload(ctx, "missing", chat.NewText("x"), false); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("FinalizeTurnReplacesPlaceholder", func(t *testing.T) {
		s := newStore(t)
		user := chat.NewMessage("shen-jibai", chat.RoleUser, chat.NewText("在吗"))
		user.Timestamp = base
		if err := s.SaveMessage(ctx, &user); err != nil {
			t.Fatalf("SaveMessage err: %v", err)
		}
		placeholder := chat.NewMessage("shen-jibai", chat.RoleModel, chat.NewText(""))
		placeholder.Timestamp = base.Add(time.Second)
		if err := s.SaveMessage(ctx, &placeholder); err != nil {
			t.Fatalf("SaveMessage err: %v", err)
		}

		finalBase := base.Add(2 * time.Second)
		var batch []chat.Message
		for i, text := range []string{"在", "刚下工地", "你吃了吗"} {
			m := chat.NewMessage("shen-jibai", chat.RoleModel, chat.NewText(text))
			m.Timestamp = finalBase.Add(time.Duration(i) * time.Millisecond)
			batch = append(batch, m)
		}
		if err := s.FinalizeTurn(ctx, placeholder.ID, batch); err != nil {
			t.Fatalf("FinalizeTurn err: %v", err)
		}

		msgs, err := s.ListByCharacter(ctx, "shen-jibai")
		if err != nil {
			t.Fatalf("ListByCharacter err: %v", err)
		}
		if len(msgs) != 4 {
			t.Fatalf("expected user + 3 bubbles, got %d messages", len(msgs))
		}
		for _, m := range msgs {
			if m.ID == placeholder.ID {
				t.Fatal("placeholder survived finalize")
			}
		}
		for i := 2; i < len(msgs); i++ {
			if !msgs[i-1].Timestamp.Before(msgs[i].Timestamp) {
				t.Fatalf("batch timestamps not strictly increasing at %d", i)
			}
		}
	})

	t.Run("FinalizeTurnEmptyBatch", func(t *testing.T) {
		s := newStore(t)
		placeholder := chat.NewMessage("tang-tang", chat.RoleModel, chat.NewText(""))
		if err := s.SaveMessage(ctx, &placeholder); err != nil {
			t.Fatalf("SaveMessage err: %v", err)
		}
		if err := s.FinalizeTurn(ctx, placeholder.ID, nil); err != nil {
			t.Fatalf("FinalizeTurn err: %v", err)
		}
		msgs, err := s.ListByCharacter(ctx, "tang-tang")
		if err != nil {
			t.Fatalf("ListByCharacter err: %v", err)
		}
		if len(msgs) != 0 {
			t.Fatalf("expected empty transcript, got %d messages", len(msgs))
		}
	})

	t.Run("FinalizeTurnMissingPlaceholder", func(t *testing.T) {
		s := newStore(t)
		err := s.FinalizeTurn(ctx, "missing", []chat.Message{chat.NewMessage("x", chat.RoleModel, chat.NewText("hi"))})
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ClearConversationLeavesOthers", func(t *testing.T) {
		s := newStore(t)
		a := chat.NewMessage("lin-xiaolu", chat.RoleUser, chat.NewText("a"))
		b := chat.NewMessage("shen-jibai", chat.RoleUser, chat.NewText("b"))
		if err := s.SaveMessage(ctx, &a); err != nil {
			t.Fatalf("SaveMessage err: %v", err)
		}
		if err := s.SaveMessage(ctx, &b); err != nil {
			t.Fatalf("SaveMessage err: %v", err)
		}
		if err := s.ClearConversation(ctx, "lin-xiaolu"); err != nil {
			t.Fatalf("ClearConversation err: %v", err)
		}
		cleared, err := s.ListByCharacter(ctx, "lin-xiaolu")
		if err != nil {
			t.Fatalf("ListByCharacter err: %v", err)
		}
		if len(cleared) != 0 {
			t.Fatalf("conversation not cleared: %d left", len(cleared))
		}
		kept, err := s.ListByCharacter(ctx, "shen-jibai")
		if err != nil {
			t.Fatalf("ListByCharacter err: %v", err)
		}
		if len(kept) != 1 {
			t.Fatalf("unrelated conversation touched: %d left", len(kept))
		}
	})
}
