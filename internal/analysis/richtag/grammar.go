package richtag

import (
	"regexp"

	"github.com/qinyuanli/bubblechat/backend/internal/model/chat"
	"github.com/qinyuanli/bubblechat/backend/internal/model/sticker"
)

// Separator 是模型把一次回复拆成多条气泡时使用的分隔符。
// 它与下方的标签语法一起构成模型输出的线上契约，系统指令中引用的
// 必须是同一份字面量。
const Separator = "|||"

// 四种标签必须独占整段文本（先去除首尾空白），prose 中间出现的标签
// 不做替换。
var (
	transferPattern = regexp.MustCompile(`^\[transfer:([^:\]]+)(?::([^\]]*))?\]$`)
	stickerPattern  = regexp.MustCompile(`^\[sticker:([^\]]+)\]$`)
	imagePattern    = regexp.MustCompile(`^\[image:([^\]]+)\]$`)
	locationPattern = regexp.MustCompile(`^\[location:([^\]]+)\]$`)
)

// EncodeTag renders the exact tag form of a non-text payload, the inverse of
// Classify. Sticker ids are resolved back to catalog names through the lookup
// (falling back to the raw id), transfer amounts are fixed to two decimals.
// Returns false for text payloads and payloads missing their variant.
func EncodeTag(p chat.Payload, stickers sticker.Lookup) (string, bool) {
	switch p.Kind {
	case chat.KindSticker:
		if p.Sticker == nil {
			return "", false
		}
		name := p.Sticker.StickerID
		if stickers != nil {
			if item, ok := stickers.FindByID(p.Sticker.StickerID); ok {
				name = item.Name
			}
		}
		return "[sticker:" + name + "]", true
	case chat.KindTransfer:
		if p.Transfer == nil {
			return "", false
		}
		amount := p.Transfer.Amount.StringFixed(2)
		if p.Transfer.Notes == "" {
			return "[transfer:" + amount + "]", true
		}
		return "[transfer:" + amount + ":" + p.Transfer.Notes + "]", true
	case chat.KindImage:
		if p.Image == nil {
			return "", false
		}
		return "[image:" + p.Image.Description + "]", true
	case chat.KindLocation:
		if p.Location == nil {
			return "", false
		}
		return "[location:" + p.Location.Name + "]", true
	}
	return "", false
}
