package chunker

import (
	"strings"
	"testing"
)

func TestSplitShortTextIsOneChunk(t *testing.T) {
	text := strings.Repeat("a", 50)
	got := Split(text, 2000)
	if len(got) != 1 || got[0] != text {
		t.Fatalf("expected a single unchanged chunk, got %v", got)
	}
}

func TestSplitExactLengthIsOneChunk(t *testing.T) {
	text := strings.Repeat("x", 2000)
	got := Split(text, 2000)
	if len(got) != 1 {
		t.Fatalf("expected exactly one chunk for len==maxLength, got %d", len(got))
	}
}

func TestSplitAllChunksWithinLimit(t *testing.T) {
	text := strings.Repeat("word ", 1000)
	got := Split(text, 200)
	if len(got) < 2 {
		t.Fatalf("expected multiple chunks")
	}
	for i, c := range got {
		if c == "" {
			t.Fatalf("chunk %d is empty", i)
		}
		if len(c) > 200 {
			t.Fatalf("chunk %d exceeds max length: %d", i, len(c))
		}
	}
}

func TestSplitNeverBreaksFencedCodeBlock(t *testing.T) {
	pre := strings.Repeat("p", 1200)
	code := "```go\n" + strings.Repeat("x", 1180) + "\n```"
	text := pre + code + strings.Repeat("q", 1100)

	got := Split(text, 2000)
	for i, c := range got {
		if strings.Count(c, "```")%2 != 0 {
			t.Fatalf("chunk %d has an odd number of fence markers:\n%s", i, c)
		}
	}
}

func TestSplitDropsEmptyChunks(t *testing.T) {
	text := strings.Repeat("a", 100) + "\n\n" + strings.Repeat(" ", 50) + "\n\n" + strings.Repeat("b", 100)
	got := Split(text, 120)
	for _, c := range got {
		if strings.TrimSpace(c) == "" {
			t.Fatalf("empty chunk leaked through: %q", c)
		}
	}
}
