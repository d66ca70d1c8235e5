// Package ollama implements the generate-style wire protocol: a single
// POST to /api/generate with a combined prompt, answered either by one
// JSON object or by a newline-delimited stream of fragments.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"voxpost/internal/backends"
)

const maxBodyBytes = 4 << 20

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg}
}

var _ backends.Backend = (*Client)(nil)

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type generateResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
}

func (c *Client) Call(ctx context.Context, req backends.Request) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:  req.Model,
		Prompt: combinePrompt(req.SystemPrompt, req.UserPrompt),
		Stream: req.Stream,
		Options: generateOptions{
			Temperature: req.Temperature,
			TopP:        req.TopP,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate payload: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/generate"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return "", backends.RequestError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		return "", backends.StatusError(resp.StatusCode, string(body))
	}

	if req.Stream {
		return c.readStream(ctx, resp.Body, req.OnFragment)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", backends.RequestError(err)
	}
	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", backends.ProtocolError("decode generate response", err)
	}
	return out.Response, nil
}

// readStream consumes newline-delimited JSON fragments until the first
// done=true object or stream close. Malformed lines are skipped, not fatal.
func (c *Client) readStream(ctx context.Context, body io.Reader, onFragment func(string)) (string, error) {
	var b strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxBodyBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return "", backends.RequestError(err)
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk generateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			c.cfg.Logger.Warn().Err(err).Msg("skipping malformed stream chunk")
			continue
		}
		if chunk.Response != "" {
			b.WriteString(chunk.Response)
			if onFragment != nil {
				onFragment(chunk.Response)
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", backends.RequestError(err)
	}
	return b.String(), nil
}

func combinePrompt(system, user string) string {
	if strings.TrimSpace(system) == "" {
		return user
	}
	return "System: " + system + "\n\nUser: " + user
}
