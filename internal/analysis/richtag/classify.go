package richtag

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/qinyuanli/bubblechat/backend/internal/model/chat"
	"github.com/qinyuanli/bubblechat/backend/internal/model/sticker"
)

// Classify maps one complete segment to a typed payload. The function is
// total: every input yields exactly one payload, plain text being the
// fallback. Malformed amounts and unknown sticker names degrade to text so
// the user still sees what the model wrote.
func Classify(segment string, stickers sticker.Lookup) chat.Payload {
	seg := strings.TrimSpace(segment)

	if m := transferPattern.FindStringSubmatch(seg); m != nil {
		amount, err := decimal.NewFromString(strings.TrimSpace(m[1]))
		if err == nil && amount.IsPositive() {
			return chat.NewTransfer(amount, m[2])
		}
		// 金额不可解析或非正数时整段按文本落底
	}

	if m := stickerPattern.FindStringSubmatch(seg); m != nil {
		if stickers != nil {
			if item, ok := stickers.FindByName(m[1]); ok {
				return chat.NewSticker(item.ID)
			}
		}
		return chat.NewText(seg)
	}

	if m := imagePattern.FindStringSubmatch(seg); m != nil {
		return chat.NewImage(m[1])
	}

	if m := locationPattern.FindStringSubmatch(seg); m != nil {
		return chat.NewLocation(m[1])
	}

	return chat.NewText(seg)
}
