package indexer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Message is a single role-tagged turn of a transcript
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Transcript is a parsed conversation file produced by the coding agent
type Transcript struct {
	SessionID string
	Messages  []Message
}

/// transcriptLine covers the line shapes the agent writes: a flat
// role/content pair or a wrapped message object, optionally carrying
// the session id.
type transcriptLine struct {
	SessionID string          `json:"sessionId"`
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	Message   *struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

// ParseTranscript reads a JSONL transcript. Lines that do not parse or
// carry no role-tagged text are skipped; a file yielding no messages at
// all is malformed.
func ParseTranscript(path string) (*Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	t := &Transcript{}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var parsed transcriptLine
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			continue
		}

		if t.SessionID == "" {
			if parsed.SessionID != "" {
				t.SessionID = parsed.SessionID
			} else if parsed.ID != "" {
				t.SessionID = parsed.ID
			}
		}

		role, content := parsed.Role, parsed.Content
		if parsed.Message != nil {
			role, content = parsed.Message.Role, parsed.Message.Content
		}
		if role == "" {
			continue
		}

		text := contentText(content)
		if text == "" {
			continue
		}

		t.Messages = append(t.Messages, Message{Role: role, Content: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	if len(t.Messages) == 0 {
		return nil, fmt.Errorf("no parseable messages in %s", path)
	}

	return t, nil
}

// contentText extracts plain text from a content value, which is either
// a string or an array of typed blocks
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var parts []string
		for _, b := range blocks {
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}

	return ""
}

// Render concatenates the transcript's messages into one searchable text
func (t *Transcript) Render() string {
	var b strings.Builder
	for _, m := range t.Messages {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// HashProjectPath reproduces the agent's directory-naming convention: a
// rolling 32-bit hash of the project path, absolute value, hex-encoded.
// Discovery silently fails if this drifts from the agent's own hashing.
func HashProjectPath(path string) string {
	var h int32
	for _, r := range path {
		h = h*31 + int32(r)
	}
	n := int64(h)
	if n < 0 {
		n = -n
	}
	return strconv.FormatInt(n, 16)
}
