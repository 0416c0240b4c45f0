package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	baseURL string
	log     *slog.Logger
	client  *http.Client
	// streams run as long as the model keeps producing tokens
	stream *http.Client
}

type TagModel struct {
	Name       string    `json:"name"`
	Model      string    `json:"model"`
	Digest     string    `json:"digest"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
	Details    any       `json:"details"`
}

// generateChunk is one NDJSON line of a streaming /api/generate response.
type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

func NewClient(baseURL string, log *slog.Logger) *Client {
	return &Client{
		baseURL: trimSlash(baseURL),
		log:     log,
		client:  &http.Client{Timeout: 30 * time.Second},
		stream:  &http.Client{Timeout: 0},
	}
}

func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/version", c.baseURL), nil)
	if err != nil {
		return err
	}
	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	data, _ := io.ReadAll(res.Body)
	res.Body.Close()
	c.log.Debug("ping response", "response", string(data))
	if res.StatusCode >= 400 {
		return fmt.Errorf("ollama ping status: %d", res.StatusCode)
	}

	return nil
}

// GenerateStream runs a single-turn generation via /api/generate with
// streaming enabled and hands each non-empty response piece to onChunk.
func (c *Client) GenerateStream(ctx context.Context, model, prompt string, onChunk func(string) error) error {
	if model == "" {
		return errors.New("empty model name")
	}
	payload := map[string]any{"model": model, "prompt": prompt, "stream": true}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/api/generate", c.baseURL), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.stream.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return fmt.Errorf("ollama generate: %s: %s", res.Status, strings.TrimSpace(string(body)))
	}

	sc := bufio.NewScanner(res.Body)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk generateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("ollama generate: decode chunk: %w", err)
		}
		if chunk.Error != "" {
			return fmt.Errorf("ollama generate: %s", chunk.Error)
		}
		if chunk.Response != "" {
			if err := onChunk(chunk.Response); err != nil {
				return err
			}
		}
		if chunk.Done {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("ollama generate: read stream: %w", err)
	}
	return errors.New("ollama generate: stream ended before done")
}

// Tags lists local models via GET /api/tags.
func (c *Client) Tags(ctx context.Context) ([]TagModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/tags", c.baseURL), nil)
	if err != nil {
		return nil, err
	}
	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("ollama tags: %s", res.Status)
	}
	var out struct {
		Models []TagModel `json:"models"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// WaitReady polls until the API answers and every model in want is present,
// or ctx expires.
func (c *Client) WaitReady(ctx context.Context, want []string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	check := func() error {
		if err := c.Ping(ctx); err != nil {
			return fmt.Errorf("ollama not reachable: %w", err)
		}

		if len(want) == 0 {
			return nil // only API readiness required
		}

		tags, err := c.Tags(ctx)
		if err != nil {
			return fmt.Errorf("list tags: %w", err)
		}

		have := map[string]struct{}{}
		for _, t := range tags {
			have[t.Name] = struct{}{}
		}

		for _, m := range want {
			if _, ok := have[m]; !ok {
				return fmt.Errorf("model not present yet: %s", m)
			}
		}

		return nil
	}

	// do an immediate attempt first
	lastErr := check()
	if lastErr == nil {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last: %v)", ctx.Err(), lastErr)
		case <-ticker.C:
			err := check()
			if err == nil {
				return nil
			}
			if ctx.Err() == nil {
				lastErr = err
			}
		}
	}
}

func trimSlash(s string) string {
	if len(s) > 0 && s[len(s)-1] == '/' {
		return s[:len(s)-1]
	}
	return s
}
