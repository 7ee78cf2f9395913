// Package transport provides the default HTTP/SSE collaborators that
// internal/datasource's Connector and Requester interfaces are built
// around: a bufio-based SSE reader for streaming and a plain net/http
// client for conditional polling GET requests.
package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/flagshipsdk/flagship-go/internal/datasource"
)

// SSEClient implements datasource.StreamClient over a single established
// HTTP response body, parsing the text/event-stream wire format.
type SSEClient struct {
	resp   *http.Response
	events chan datasource.StreamEvent
	errs   chan datasource.StreamError

	closeOnce sync.Once
	cancel    context.CancelFunc
}

// ConnectStream opens a streaming GET against url with the given
// authorization header and starts parsing events in the background.
func ConnectStream(ctx context.Context, client *http.Client, url, authHeader string) (datasource.StreamClient, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", authHeader)

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		cancel()
		return nil, &streamConnectError{statusCode: resp.StatusCode, body: string(body)}
	}

	c := &SSEClient{
		resp:   resp,
		events: make(chan datasource.StreamEvent, 16),
		errs:   make(chan datasource.StreamError, 1),
		cancel: cancel,
	}
	go c.readLoop()
	return c, nil
}

type streamConnectError struct {
	statusCode int
	body       string
}

func (e *streamConnectError) Error() string {
	return fmt.Sprintf("stream connect failed: status %d: %s", e.statusCode, e.body)
}

func (c *SSEClient) Events() <-chan datasource.StreamEvent { return c.events }
func (c *SSEClient) Errors() <-chan datasource.StreamError { return c.errs }

func (c *SSEClient) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.resp.Body.Close()
	})
}

// readLoop parses the text/event-stream framing: lines of "event: NAME",
// "data: PAYLOAD" (possibly repeated), separated by a blank line.
func (c *SSEClient) readLoop() {
	defer close(c.events)
	scanner := bufio.NewScanner(c.resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	var dataLines []string
	flush := func() {
		if eventName == "" && len(dataLines) == 0 {
			return
		}
		c.events <- datasource.StreamEvent{
			Name: eventName,
			Data: []byte(strings.Join(dataLines, "\n")),
		}
		eventName = ""
		dataLines = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, ":"):
			// comment/heartbeat, ignore
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case c.errs <- datasource.StreamError{Permanent: false, Err: err}:
		default:
		}
	}
}
