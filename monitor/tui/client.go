package tui

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// wireEvent mirrors monitor/web's eventJSON wire shape.
type wireEvent struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	SessionID  uint16 `json:"session_id"`
	SubAddress string `json:"sub_address,omitempty"`
	At         string `json:"at"`
	Detail     string `json:"detail,omitempty"`
	Normalized string `json:"normalized,omitempty"`
	Chatter    bool   `json:"chatter,omitempty"`
}

func (w wireEvent) at() time.Time {
	t, err := time.Parse(time.RFC3339Nano, w.At)
	if err != nil {
		return time.Time{}
	}
	return t
}

// sseClient streams events from a monitor/web Server's /api/events endpoint.
type sseClient struct {
	target string
	events chan wireEvent
	errs   chan error
}

func newSSEClient(target string) *sseClient {
	return &sseClient{
		target: target,
		events: make(chan wireEvent, 256),
		errs:   make(chan error, 1),
	}
}

// run connects and streams events until the response body ends or an
// error occurs; it is meant to be started on its own goroutine.
func (c *sseClient) run() {
	url := strings.TrimRight(c.target, "/") + "/api/events"
	resp, err := http.Get(url) //nolint:noctx // lifetime is the whole TUI session
	if err != nil {
		c.errs <- fmt.Errorf("connect %s: %w", url, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.errs <- fmt.Errorf("connect %s: status %s", url, resp.Status)
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var ev wireEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue
		}
		c.events <- ev
	}
	if err := scanner.Err(); err != nil {
		c.errs <- fmt.Errorf("stream %s: %w", url, err)
		return
	}
	c.errs <- fmt.Errorf("stream %s: closed by server", url)
}
