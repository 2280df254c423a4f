package repository

import (
	"testing"

	"ki-studio/internal/domain"
)

func TestDedupeByChat_KeepsClosestPerChat(t *testing.T) {
	in := []domain.ChatSearchResult{
		{Chat: domain.Chat{ID: "c1"}, Snippet: "a", Distance: 0.1},
		{Chat: domain.Chat{ID: "c1"}, Snippet: "b", Distance: 0.2},
		{Chat: domain.Chat{ID: "c2"}, Snippet: "c", Distance: 0.3},
		{Chat: domain.Chat{ID: "c3"}, Snippet: "d", Distance: 0.4},
	}

	out := dedupeByChat(in, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	if out[0].Chat.ID != "c1" || out[0].Snippet != "a" {
		t.Fatalf("expected closest snippet for c1, got %+v", out[0])
	}
	if out[1].Chat.ID != "c2" {
		t.Fatalf("expected c2 second, got %+v", out[1])
	}
}
