package segment

import (
	"strings"
	"testing"
)

func collect(t *testing.T, sep string, chunks ...string) []string {
	t.Helper()
	s := New(sep)
	var got []string
	for _, c := range chunks {
		got = append(got, s.Feed(c)...)
	}
	got = append(got, s.Finish())
	return got
}

func TestFeedDetectsSeparatorSplitAcrossChunks(t *testing.T) {
	got := collect(t, "|||", "Hi there!|", "||How can", " I help?")
	want := []string{"Hi there!", "How can I help?"}
	if len(got) != len(want) {
		t.Fatalf("segment count mismatch: want %d, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("segment %d mismatch: want %q, got %q", i, want[i], got[i])
		}
	}
}

// Splitting must not depend on where chunk boundaries fall. Every three-way
// partition of the source (including ones that cut the separator and ones
// that cut multi-byte runes) has to produce the same segments as feeding the
// source whole.
func TestFeedChunkingInvariance(t *testing.T) {
	src := "早安呀|||吃过了吗？|||[sticker:happy_cat]|||嗯嗯"
	want := collect(t, "|||", src)

	for i := 0; i <= len(src); i++ {
		for j := i; j <= len(src); j++ {
			got := collect(t, "|||", src[:i], src[i:j], src[j:])
			if len(got) != len(want) {
				t.Fatalf("split at (%d,%d): want %d segments, got %d", i, j, len(want), len(got))
			}
			for k := range want {
				if got[k] != want[k] {
					t.Fatalf("split at (%d,%d): segment %d mismatch: want %q, got %q", i, j, k, want[k], got[k])
				}
			}
		}
	}
}

func TestFeedEmitsSegmentsInOrder(t *testing.T) {
	s := New("|||")
	got := s.Feed("a|||b|||c|||d")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("want %d segments, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("segment %d mismatch: want %q, got %q", i, want[i], got[i])
		}
	}
	if rest := s.Finish(); rest != "d" {
		t.Fatalf("remainder mismatch: want %q, got %q", "d", rest)
	}
}

func TestFinishReturnsEmptyRemainderAfterTrailingSeparator(t *testing.T) {
	s := New("|||")
	if got := s.Feed("再见|||"); len(got) != 1 || got[0] != "再见" {
		t.Fatalf("unexpected segments: %v", got)
	}
	if rest := s.Finish(); rest != "" {
		t.Fatalf("expected empty remainder, got %q", rest)
	}
}

func TestFeedWithoutSeparatorBuffersEverything(t *testing.T) {
	s := New("|||")
	for _, c := range []string{"no ", "separator ", "here"} {
		if got := s.Feed(c); len(got) != 0 {
			t.Fatalf("unexpected early segments: %v", got)
		}
	}
	if rest := s.Finish(); rest != "no separator here" {
		t.Fatalf("remainder mismatch: %q", rest)
	}
}

func TestConsecutiveSeparatorsYieldEmptySegments(t *testing.T) {
	got := collect(t, "|||", "a||||||b")
	want := []string{"a", "", "b"}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("segment %d mismatch: want %q, got %q", i, want[i], got[i])
		}
	}
}

func TestFeedAfterFinishPanics(t *testing.T) {
	s := New("|||")
	s.Feed("你好")
	s.Finish()
	defer func() {
		if recover() == nil {
			t.Fatal("Feed after Finish should panic")
		}
	}()
	s.Feed("世界")
}

func TestLongStreamManyChunks(t *testing.T) {
	var parts []string
	for i := 0; i < 50; i++ {
		parts = append(parts, strings.Repeat("字", i%7+1))
	}
	src := strings.Join(parts, "|||")

	s := New("|||")
	var got []string
	// feed two bytes at a time so every separator is cut in half somewhere
	for i := 0; i < len(src); i += 2 {
		end := i + 2
		if end > len(src) {
			end = len(src)
		}
		got = append(got, s.Feed(src[i:end])...)
	}
	got = append(got, s.Finish())

	if len(got) != len(parts) {
		t.Fatalf("want %d segments, got %d", len(parts), len(got))
	}
	for i := range parts {
		if got[i] != parts[i] {
			t.Fatalf("segment %d mismatch", i)
		}
	}
}
