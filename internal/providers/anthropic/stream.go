package anthropic

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/harbz07/mindbridge-router/internal/core"
)

// anthropicStreamEvent is one SSE event from the Messages API stream.
type anthropicStreamEvent struct {
	Type    string              `json:"type"`
	Index   int                 `json:"index,omitempty"`
	Delta   *anthropicDelta     `json:"delta,omitempty"`
	Message *anthropicResponse  `json:"message,omitempty"`
	Error   *anthropicStreamErr `json:"error,omitempty"`
}

type anthropicDelta struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

type anthropicStreamErr struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// streamConverter wraps a Messages API stream and re-emits it as OpenAI
// chat.completion.chunk events. Exactly one terminal chunk (with a
// finish_reason) is produced, followed by a single data: [DONE] sentinel;
// if the upstream ends without reporting a stop reason, the terminal chunk
// carries the "unknown" marker.
type streamConverter struct {
	reader   *bufio.Reader
	body     io.ReadCloser
	model    string
	tag      string
	msgID    string
	buffer   []byte
	finished bool
	closed   bool
}

func newStreamConverter(body io.ReadCloser, tag, model string) *streamConverter {
	return &streamConverter{
		reader: bufio.NewReader(body),
		body:   body,
		tag:    tag,
		model:  model,
		buffer: make([]byte, 0, 1024),
	}
}

func (sc *streamConverter) Read(p []byte) (n int, err error) {
	if len(sc.buffer) > 0 {
		return sc.drain(p), nil
	}
	if sc.closed {
		return 0, io.EOF
	}

	for {
		line, err := sc.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				sc.terminate("")
				return sc.drain(p), nil
			}
			return 0, err
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 || bytes.HasPrefix(line, []byte("event:")) {
			continue
		}
		data, ok := bytes.CutPrefix(line, []byte("data:"))
		if !ok {
			continue
		}

		var event anthropicStreamEvent
		if err := json.Unmarshal(bytes.TrimSpace(data), &event); err != nil {
			continue
		}

		if chunk := sc.convertEvent(&event); chunk != "" {
			sc.buffer = append(sc.buffer, chunk...)
			return sc.drain(p), nil
		}
		if sc.closed {
			return sc.drain(p), nil
		}
	}
}

// drain copies buffered output into p.
func (sc *streamConverter) drain(p []byte) int {
	n := copy(p, sc.buffer)
	sc.buffer = sc.buffer[n:]
	return n
}

// terminate buffers the terminal chunk (if none was emitted yet) and the
// [DONE] sentinel, then closes the upstream body.
func (sc *streamConverter) terminate(stopReason string) {
	if !sc.finished {
		reason := mapStopReason(stopReason)
		sc.buffer = append(sc.buffer, sc.finishChunk(reason)...)
		sc.finished = true
	}
	sc.buffer = append(sc.buffer, "data: [DONE]\n\n"...)
	sc.closed = true
	_ = sc.body.Close() //nolint:errcheck
}

func (sc *streamConverter) Close() error {
	sc.closed = true
	return sc.body.Close()
}

// convertEvent maps one Anthropic event to zero or one OpenAI SSE events.
func (sc *streamConverter) convertEvent(event *anthropicStreamEvent) string {
	switch event.Type {
	case "message_start":
		if event.Message != nil {
			sc.msgID = event.Message.ID
		}
		return sc.encode(core.ChunkChoice{
			Delta: core.ChunkDelta{Role: "assistant"},
		})

	case "content_block_delta":
		if event.Delta == nil || event.Delta.Text == "" {
			return ""
		}
		return sc.encode(core.ChunkChoice{
			Delta: core.ChunkDelta{Content: event.Delta.Text},
		})

	case "message_delta":
		if event.Delta == nil || event.Delta.StopReason == "" {
			return ""
		}
		reason := mapStopReason(event.Delta.StopReason)
		sc.finished = true
		return sc.finishChunk(reason)

	case "message_stop":
		sc.terminate("")
		return ""

	case "error":
		// In-band upstream failure: surface the normalized envelope as the
		// stream's final data event, then end cleanly.
		msg := "provider stream error"
		if event.Error != nil && event.Error.Message != "" {
			msg = event.Error.Message
		}
		gerr := core.NewUpstreamError(sc.tag, 0, msg, nil)
		payload, _ := json.Marshal(gerr.ToJSON())
		sc.finished = true
		sc.buffer = append(sc.buffer, fmt.Sprintf("data: %s\n\n", payload)...)
		sc.buffer = append(sc.buffer, "data: [DONE]\n\n"...)
		sc.closed = true
		_ = sc.body.Close() //nolint:errcheck
		return ""
	}
	return ""
}

// finishChunk renders the terminal chunk carrying the finish reason.
func (sc *streamConverter) finishChunk(reason string) string {
	return sc.encode(core.ChunkChoice{
		Delta:        core.ChunkDelta{},
		FinishReason: &reason,
	})
}

// encode renders one chunk as an SSE data event.
func (sc *streamConverter) encode(choice core.ChunkChoice) string {
	chunk := core.ChatCompletionChunk{
		ID:      sc.msgID,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   sc.model,
		Choices: []core.ChunkChoice{choice},
	}
	data, err := json.Marshal(chunk)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("data: %s\n\n", data)
}
