package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ai-chat/httpclient"
)

// RemoteProvider streams completions through the API server's POST /chat
// endpoint, so the client needs no provider key of its own.
type RemoteProvider struct {
	client *httpclient.BaseClient
}

// NewRemoteProvider builds a provider for baseURL. httpClient may be nil, in
// which case a streaming client without a request timeout is used.
func NewRemoteProvider(baseURL string, httpClient *http.Client) *RemoteProvider {
	if httpClient == nil {
		httpClient = httpclient.New(httpclient.Config{Streaming: true})
	}
	return &RemoteProvider{client: httpclient.NewBaseClientWithClient(httpClient, baseURL)}
}

// remoteStatusError keeps the HTTP status in the message so the error
// classifier can see codes such as 401 and 429.
type remoteStatusError struct {
	StatusCode int
	Message    string
}

func (e *remoteStatusError) Error() string {
	return fmt.Sprintf("chat api: status %d: %s", e.StatusCode, e.Message)
}

func (p *RemoteProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := p.client.NewRequest(ctx, http.MethodPost, "/chat", nil, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, &remoteStatusError{StatusCode: resp.StatusCode, Message: readErrorBody(resp.Body)}
	}

	reader := bufio.NewReaderSize(resp.Body, 64*1024)
	return &remoteStream{body: resp.Body, reader: reader}, nil
}

func readErrorBody(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 64*1024))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return msg
	}
	return http.StatusText(http.StatusInternalServerError)
}

type remoteStream struct {
	body    io.ReadCloser
	reader  *bufio.Reader
	current string
	usage   *Usage
	err     error
	done    bool
}

func (s *remoteStream) Next() bool {
	for !s.done {
		ev, err := s.readEvent()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			s.fail(err)
			break
		}
		switch ev.Type {
		case EventContent:
			if ev.Content == "" {
				continue
			}
			s.current = ev.Content
			return true
		case EventUsage:
			s.usage = ev.Usage
		case EventDone:
			if ev.Usage != nil {
				s.usage = ev.Usage
			}
			s.done = true
		case EventError:
			s.fail(errors.New(ev.Error))
		}
	}
	s.current = ""
	return false
}

func (s *remoteStream) fail(err error) {
	s.err = err
	s.done = true
}

// readEvent returns the next data payload, skipping comments, blank lines
// and non-data fields.
func (s *remoteStream) readEvent() (Event, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			return Event{}, err
		}
		line = strings.TrimRight(line, "\r\n")
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			if err != nil {
				return Event{}, err
			}
			continue
		}
		var ev Event
		if jerr := json.Unmarshal([]byte(strings.TrimSpace(data)), &ev); jerr != nil {
			return Event{}, fmt.Errorf("chat api: decode event: %w", jerr)
		}
		return ev, nil
	}
}

func (s *remoteStream) Delta() string { return s.current }
func (s *remoteStream) Err() error    { return s.err }
func (s *remoteStream) Usage() *Usage { return s.usage }
func (s *remoteStream) Close() error  { return s.body.Close() }

var _ Provider = (*RemoteProvider)(nil)
