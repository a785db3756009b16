// Package chatstream talks to the chat completion gateway and rebuilds the
// assistant reply from its event stream.
package chatstream

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the conversation sent to, or rebuilt from, the
// gateway. Failed marks a fallback notice appended after an upstream error.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Failed  bool   `json:"-"`
}

// MaxPending bounds a payload held back while waiting for the rest of it.
const MaxPending = 64 << 10

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"
)

type chunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Assembler consumes raw event-stream bytes and accumulates the assistant
// message for a single turn. It is not safe for concurrent use.
type Assembler struct {
	messages  []Message
	onDelta   func(string)
	buf       []byte
	pending   string
	content   strings.Builder
	reply     int // index of this turn's assistant message, -1 until the first fragment
	fragments int
	stopped   bool // the last pass ended on [DONE]
}

// NewAssembler starts a turn on top of history. onDelta, when set, is
// called with every content fragment as it arrives.
func NewAssembler(history []Message, onDelta func(string)) *Assembler {
	msgs := make([]Message, len(history), len(history)+2)
	copy(msgs, history)
	return &Assembler{messages: msgs, onDelta: onDelta, reply: -1}
}

// Write buffers p and processes every complete line. Bytes after the last
// newline stay buffered, so multi-byte characters and JSON objects split
// across writes are rebuilt. A [DONE] line ends the pass; lines behind it
// are picked up by the next Write.
func (a *Assembler) Write(p []byte) (int, error) {
	a.buf = append(a.buf, p...)
	a.drain()
	return len(p), nil
}

// Finish treats any unterminated tail as a final line. Call it once the
// underlying stream has ended. When the last pass stopped at [DONE] the
// buffered tail is discarded unread.
func (a *Assembler) Finish() {
	if !a.stopped {
		a.drain()
	}
	if !a.stopped && len(a.buf) > 0 {
		a.buf = append(a.buf, '\n')
		a.drain()
	}
	a.buf = nil
	a.pending = ""
}

func (a *Assembler) drain() {
	a.stopped = false
	for {
		i := bytes.IndexByte(a.buf, '\n')
		if i < 0 {
			return
		}
		line := strings.TrimSuffix(string(a.buf[:i]), "\r")
		a.buf = a.buf[i+1:]
		if !a.line(line) {
			a.stopped = true
			return
		}
	}
}

// line handles one line and reports whether the pass should continue.
func (a *Assembler) line(line string) bool {
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, ":") {
		return true
	}

	if a.pending != "" {
		joined := a.pending + "\n" + line
		if c, ok := parse(joined); ok {
			a.pending = ""
			a.apply(c)
			return true
		}
		if !strings.HasPrefix(line, dataPrefix) {
			a.hold(joined)
			return true
		}
		// a fresh data line replaces the held payload
	}

	if !strings.HasPrefix(line, dataPrefix) {
		return true
	}
	payload := strings.TrimSpace(line[len(dataPrefix):])
	if payload == doneMarker {
		a.pending = ""
		return false
	}
	c, ok := parse(payload)
	if !ok {
		a.hold(payload)
		return true
	}
	a.pending = ""
	a.apply(c)
	return true
}

func (a *Assembler) hold(s string) {
	if len(s) > MaxPending {
		a.pending = ""
		return
	}
	a.pending = s
}

func parse(s string) (chunk, bool) {
	var c chunk
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return chunk{}, false
	}
	return c, true
}

func (a *Assembler) apply(c chunk) {
	if len(c.Choices) == 0 || c.Choices[0].Delta.Content == "" {
		return
	}
	frag := c.Choices[0].Delta.Content
	a.content.WriteString(frag)
	a.fragments++
	if a.reply < 0 {
		a.messages = append(a.messages, Message{Role: RoleAssistant})
		a.reply = len(a.messages) - 1
	}
	a.messages[a.reply].Content = a.content.String()
	if a.onDelta != nil {
		a.onDelta(frag)
	}
}

// Content is the assistant text assembled so far.
func (a *Assembler) Content() string { return a.content.String() }

// Fragments is the number of non-empty fragments applied.
func (a *Assembler) Fragments() int { return a.fragments }

// Messages returns the history plus this turn's assistant message, if any
// content has arrived.
func (a *Assembler) Messages() []Message {
	out := make([]Message, len(a.messages))
	copy(out, a.messages)
	return out
}

func (a *Assembler) fail(msg string) {
	a.messages = append(a.messages, Message{Role: RoleAssistant, Content: msg, Failed: true})
}
