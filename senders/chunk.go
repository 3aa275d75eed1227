package senders

import "strings"

const messageSeparator = "\n\n"

// Chunk joins messages with blank lines into pieces no longer than limit. A message longer
// than limit on its own is split at rune boundaries. A limit of 0 yields a single piece.
func Chunk(messages []string, limit int) []string {
	if limit <= 0 {
		if len(messages) == 0 {
			return nil
		}
		return []string{strings.Join(messages, messageSeparator)}
	}

	var chunks []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, msg := range messages {
		for _, piece := range splitRunes(msg, limit) {
			if current.Len() > 0 && current.Len()+len(messageSeparator)+len(piece) > limit {
				flush()
			}
			if current.Len() > 0 {
				current.WriteString(messageSeparator)
			}
			current.WriteString(piece)
		}
	}
	flush()
	return chunks
}

func splitRunes(s string, limit int) []string {
	if len(s) <= limit {
		return []string{s}
	}
	var out []string
	start := 0
	size := 0
	for i, r := range s {
		n := len(string(r))
		if size+n > limit {
			out = append(out, s[start:i])
			start, size = i, 0
		}
		size += n
	}
	return append(out, s[start:])
}
