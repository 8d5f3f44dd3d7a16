package workspace

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// Parsed is the result of splitting a streamed buffer into the reasoning
// segment and the final content.
type Parsed struct {
	Thinking   string
	Content    string
	InThinking bool
}

// ParseThinking splits an accumulating buffer on the <think>...</think>
// delimiter pair. The buffer may be incomplete: an opener without a closer
// means the model is still reasoning, so everything after the opener is
// thinking and everything before it is content. Once the closer arrives the
// thinking segment is the span between the delimiters and content is the
// concatenation of what came before the opener and after the closer.
//
// The split is stable under append-only growth: re-parsing a longer buffer
// only extends the segment currently being streamed.
func ParseThinking(buffer string) Parsed {
	open := strings.Index(buffer, thinkOpen)
	if open == -1 {
		return Parsed{Content: buffer}
	}

	rest := buffer[open+len(thinkOpen):]
	closeIdx := strings.Index(rest, thinkClose)
	if closeIdx == -1 {
		return Parsed{
			Thinking:   rest,
			Content:    buffer[:open],
			InThinking: true,
		}
	}

	return Parsed{
		Thinking: rest[:closeIdx],
		Content:  buffer[:open] + rest[closeIdx+len(thinkClose):],
	}
}
