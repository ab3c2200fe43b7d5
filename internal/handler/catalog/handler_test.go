package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/qinyuanli/bubblechat/backend/internal/model/character"
	"github.com/qinyuanli/bubblechat/backend/internal/model/sticker"
)

func setupRouter() (*chi.Mux, character.Store) {
	characters := character.NewMemoryStore(character.Seed())
	stickers := sticker.NewMemoryStore(sticker.Seed())
	handler := New(characters, stickers)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, characters
}

func TestListCharacters(t *testing.T) {
	r, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/characters", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var got []character.Character
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected seeded characters")
	}
}

func TestGetCharacter(t *testing.T) {
	r, characters := setupRouter()
	want := characters.List()[0]

	req := httptest.NewRequest(http.MethodGet, "/characters/"+want.ID, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var got character.Character
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != want.ID || got.Name != want.Name {
		t.Fatalf("unexpected character: got %+v want %+v", got, want)
	}
}

func TestGetCharacterNotFound(t *testing.T) {
	r, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/characters/non-existent", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestListStickers(t *testing.T) {
	r, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/stickers", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var got []sticker.Sticker
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected seeded stickers")
	}
}
