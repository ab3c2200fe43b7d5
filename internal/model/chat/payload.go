package chat

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind discriminates the payload union.
type Kind string

const (
	KindText     Kind = "text"
	KindSticker  Kind = "sticker"
	KindTransfer Kind = "transfer"
	KindImage    Kind = "image"
	KindLocation Kind = "location"
)

// Payload is the typed content of a bubble. Exactly one variant is active:
// Text for KindText, the matching pointer field for every other kind.
type Payload struct {
	Kind     Kind      `json:"kind"`
	Text     string    `json:"text,omitempty"`
	Sticker  *Sticker  `json:"sticker,omitempty"`
	Transfer *Transfer `json:"transfer,omitempty"`
	Image    *Image    `json:"image,omitempty"`
	Location *Location `json:"location,omitempty"`
}

// Sticker references an entry of the sticker catalog by id.
type Sticker struct {
	StickerID string `json:"stickerId"`
}

// Transfer is a money bubble. Amount uses decimal so 8.88 stays 8.88.
type Transfer struct {
	Amount decimal.Decimal `json:"amount"`
	Notes  string          `json:"notes,omitempty"`
}

// Image carries a textual description of a picture the character "sent".
type Image struct {
	Description string `json:"description"`
}

// Location carries a place name.
type Location struct {
	Name string `json:"name"`
}

// NewText builds a plain text payload.
func NewText(content string) Payload {
	return Payload{Kind: KindText, Text: content}
}

// NewSticker builds a sticker payload for a catalog id.
func NewSticker(stickerID string) Payload {
	return Payload{Kind: KindSticker, Sticker: &Sticker{StickerID: stickerID}}
}

// NewTransfer builds a transfer payload.
func NewTransfer(amount decimal.Decimal, notes string) Payload {
	return Payload{Kind: KindTransfer, Transfer: &Transfer{Amount: amount, Notes: notes}}
}

// NewImage builds an image payload.
func NewImage(description string) Payload {
	return Payload{Kind: KindImage, Image: &Image{Description: description}}
}

// NewLocation builds a location payload.
func NewLocation(name string) Payload {
	return Payload{Kind: KindLocation, Location: &Location{Name: name}}
}

// Validate checks that the kind matches the populated variant. Payloads built
// through the constructors always pass; payloads decoded from client JSON go
// through this before they are stored.
func (p Payload) Validate() error {
	variants := 0
	if p.Sticker != nil {
		variants++
	}
	if p.Transfer != nil {
		variants++
	}
	if p.Image != nil {
		variants++
	}
	if p.Location != nil {
		variants++
	}
	switch p.Kind {
	case KindText:
		if variants != 0 {
			return fmt.Errorf("text payload carries a non-text variant")
		}
	case KindSticker:
		if p.Sticker == nil || variants != 1 {
			return fmt.Errorf("sticker payload requires exactly the sticker variant")
		}
		if p.Sticker.StickerID == "" {
			return fmt.Errorf("sticker payload missing stickerId")
		}
	case KindTransfer:
		if p.Transfer == nil || variants != 1 {
			return fmt.Errorf("transfer payload requires exactly the transfer variant")
		}
		if !p.Transfer.Amount.IsPositive() {
			return fmt.Errorf("transfer amount must be positive")
		}
	case KindImage:
		if p.Image == nil || variants != 1 {
			return fmt.Errorf("image payload requires exactly the image variant")
		}
		if p.Image.Description == "" {
			return fmt.Errorf("image payload missing description")
		}
	case KindLocation:
		if p.Location == nil || variants != 1 {
			return fmt.Errorf("location payload requires exactly the location variant")
		}
		if p.Location.Name == "" {
			return fmt.Errorf("location payload missing name")
		}
	default:
		return fmt.Errorf("unknown payload kind %q", p.Kind)
	}
	return nil
}
