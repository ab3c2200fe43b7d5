package sticker

// Sticker is one entry of the sticker catalog. Name is the token the model
// writes inside [sticker:NAME]; ID is what persisted payloads reference.
type Sticker struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Seed provides the default sticker catalog shipped with the app.
func Seed() []Sticker {
	return []Sticker{
		{ID: "stk-001", Name: "happy_cat", URL: "/stickers/happy_cat.webp"},
		{ID: "stk-002", Name: "sad_dog", URL: "/stickers/sad_dog.webp"},
		{ID: "stk-003", Name: "thumbs_up", URL: "/stickers/thumbs_up.webp"},
		{ID: "stk-004", Name: "angry_bird", URL: "/stickers/angry_bird.webp"},
		{ID: "stk-005", Name: "sleepy_panda", URL: "/stickers/sleepy_panda.webp"},
		{ID: "stk-006", Name: "party_parrot", URL: "/stickers/party_parrot.webp"},
	}
}
