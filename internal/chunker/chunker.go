// Package chunker splits agent replies into platform-sized pieces without
// breaking fenced code blocks or cutting mid-word when it can be avoided.
//
// Grounded on internal/channels/discord/discord.go's sendChunked (which only
// knew priorities 3 and 5 below); this is the fuller five-priority splitter.
package chunker

import "strings"

// DefaultMaxLength is the conservative platform message-length ceiling used
// when a caller does not supply one (matches Discord's 2000-char limit).
const DefaultMaxLength = 2000

// Split partitions text into chunks of at most maxLength characters, never
// breaking inside a fenced code block, preferring paragraph, then line, then
// word boundaries, and falling back to a hard cut. Empty chunks are dropped.
func Split(text string, maxLength int) []string {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	var chunks []string
	remaining := text
	for len(remaining) > maxLength {
		window := remaining[:maxLength]
		cutEnd, resumeStart := splitPoint(window, maxLength)

		piece := strings.TrimSpace(remaining[:cutEnd])
		if piece != "" {
			chunks = append(chunks, piece)
		}
		remaining = strings.TrimLeft(remaining[resumeStart:], " \t\n")
	}

	if tail := strings.TrimSpace(remaining); tail != "" {
		chunks = append(chunks, tail)
	}
	return chunks
}

// splitPoint picks where to end the current chunk (cutEnd, exclusive) and
// where the next chunk should resume (resumeStart), operating purely on the
// maxLength-sized window.
func splitPoint(window string, maxLength int) (cutEnd, resumeStart int) {
	if cut, ok := fenceAwareSplit(window, maxLength); ok {
		return cut, cut
	}

	// A boundary preceded by an odd number of fences lies inside a block.
	outsideFence := func(idx int) bool { return strings.Count(window[:idx], "```")%2 == 0 }

	if idx := strings.LastIndex(window, "\n\n"); idx > maxLength/3 && outsideFence(idx) {
		return idx, idx + 2
	}
	if idx := strings.LastIndex(window, "\n"); idx > maxLength/3 && outsideFence(idx) {
		return idx, idx + 1
	}
	if idx := strings.LastIndex(window, " "); idx > maxLength/2 && outsideFence(idx) {
		return idx, idx + 1
	}
	return maxLength, maxLength
}

// fenceAwareSplit returns a split point forced by an odd number of
// triple-backtick fence markers in the window (i.e. the window would end
// mid-fenced-block). ok is false when the window's fence markers are
// balanced, meaning priorities 2-5 are free to choose any point.
func fenceAwareSplit(window string, maxLength int) (cut int, ok bool) {
	fences := fenceIndices(window)
	if len(fences)%2 == 0 {
		return 0, false
	}

	// fences[:len(fences)-1] form complete (open, close) pairs; the final
	// entry is the unmatched fence that opens a block extending past the
	// window.
	completePairs := len(fences) - 1
	if completePairs > 0 {
		lastFenceEnd := fences[completePairs-1] + 3
		return lastFenceEnd, true
	}

	// No complete block in the window at all: cut before the lone fence if
	// that leaves a reasonably sized chunk, otherwise let the generic
	// priorities decide (rare: a code block starting very early).
	if fences[0] >= maxLength/4 {
		return fences[0], true
	}
	return 0, false
}

func fenceIndices(s string) []int {
	var idxs []int
	offset := 0
	for {
		i := strings.Index(s[offset:], "```")
		if i < 0 {
			return idxs
		}
		idxs = append(idxs, offset+i)
		offset += i + 3
	}
}
