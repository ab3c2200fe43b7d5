package chat

import (
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/qinyuanli/bubblechat/backend/internal/analysis/richtag"
	"github.com/qinyuanli/bubblechat/backend/internal/model/chat"
	"github.com/qinyuanli/bubblechat/backend/internal/model/sticker"
)

// EncodeText renders one persisted message as flat prompt text. Rich payloads
// come back out in the same bracket grammar the classifier parses, so a
// replayed transcript teaches the model the exact syntax it is expected to
// speak. Transfers additionally get a direction prefix, since the bare tag
// does not say who paid whom.
func EncodeText(m chat.Message, stickers sticker.Lookup) string {
	switch m.Payload.Kind {
	case chat.KindText:
		return m.Payload.Text
	case chat.KindTransfer:
		tag, ok := richtag.EncodeTag(m.Payload, stickers)
		if !ok {
			return ""
		}
		if m.Role == chat.RoleUser {
			return "用户向你转账：" + tag
		}
		return "你向用户转账：" + tag
	default:
		tag, _ := richtag.EncodeTag(m.Payload, stickers)
		return tag
	}
}

// EncodeTranscript converts stored messages into the role-tagged history that
// primes a model conversation. Entries that render blank are dropped, which
// also keeps in-flight placeholders out of the replay.
func EncodeTranscript(messages []chat.Message, stickers sticker.Lookup) []*schema.Message {
	history := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		text := EncodeText(m, stickers)
		if strings.TrimSpace(text) == "" {
			continue
		}
		switch m.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(text))
		case chat.RoleModel:
			history = append(history, schema.AssistantMessage(text, nil))
		}
	}
	if len(history) == 0 {
		return nil
	}
	return history
}
