package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/harbz07/mindbridge-router/internal/core"
)

// streamChunk is one read from the upstream stream.
type streamChunk struct {
	data []byte
	err  error
}

// relayStream copies SSE events from the adapter stream to the client,
// flushing after every write. If the upstream fails mid-stream or goes
// silent past the idle timeout, the relay emits a normalized error event
// followed by the [DONE] sentinel, so the client always sees a terminal
// event; it never receives a silent hang-up.
func (h *Handler) relayStream(c echo.Context, stream io.ReadCloser, providerTag string) error {
	defer func() {
		_ = stream.Close() //nolint:errcheck
	}()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.WriteHeader(http.StatusOK)

	// The request context cancels when the client disconnects, which both
	// unblocks the reader and keeps it from leaking on early return.
	ctx := c.Request().Context()

	chunks := make(chan streamChunk)
	go func() {
		defer close(chunks)
		buf := make([]byte, 4096)
		for {
			n, err := stream.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				select {
				case chunks <- streamChunk{data: data}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					select {
					case chunks <- streamChunk{err: err}:
					case <-ctx.Done():
					}
				}
				return
			}
		}
	}()

	idle := time.NewTimer(h.streamIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			if chunk.err != nil {
				h.writeStreamError(resp, providerTag, chunk.err)
				return nil
			}
			if _, err := resp.Write(chunk.data); err != nil {
				// Client went away; nothing left to relay.
				return nil
			}
			resp.Flush()

			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(h.streamIdleTimeout)

		case <-idle.C:
			h.writeStreamError(resp, providerTag,
				core.NewUpstreamUnavailableError(providerTag, "upstream stream stalled", nil))
			return nil

		case <-ctx.Done():
			return nil
		}
	}
}

// writeStreamError emits the normalized error envelope as an SSE data
// event, then terminates the stream with the [DONE] sentinel.
func (h *Handler) writeStreamError(resp *echo.Response, providerTag string, err error) {
	gerr := core.AsGatewayError(err)
	if gerr.Provider == "" {
		gerr.Provider = providerTag
	}
	payload, merr := json.Marshal(gerr.ToJSON())
	if merr == nil {
		_, _ = resp.Write([]byte("data: ")) //nolint:errcheck
		_, _ = resp.Write(payload)          //nolint:errcheck
		_, _ = resp.Write([]byte("\n\n"))   //nolint:errcheck
	}
	_, _ = resp.Write([]byte("data: [DONE]\n\n")) //nolint:errcheck
	resp.Flush()
}
