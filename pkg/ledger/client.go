// Package ledger talks to AO processes: it signs ANS-104 data items with an
// Arweave wallet, submits them to a messenger unit and reads process results
// from a compute unit.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tinyland-inc/aobridge/pkg/logger"
)

const (
	DefaultMessengerURL = "https://mu.ao-testnet.xyz"
	DefaultComputeURL   = "https://cu.ao-testnet.xyz"

	defaultTimeout = 30 * time.Second
	sdkName        = "aobridge"
)

// Config holds the AO unit endpoints.
type Config struct {
	MessengerURL string `json:"mu_url"`
	ComputeURL   string `json:"cu_url"`
	Timeout      time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	muURL      string
	cuURL      string
	httpClient *http.Client
	signer     *Signer
}

// NewClient returns a client. signer may be nil for a read-only client;
// Send then fails.
func NewClient(cfg Config, signer *Signer) *Client {
	if cfg.MessengerURL == "" {
		cfg.MessengerURL = DefaultMessengerURL
	}
	if cfg.ComputeURL == "" {
		cfg.ComputeURL = DefaultComputeURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		muURL:      strings.TrimRight(cfg.MessengerURL, "/"),
		cuURL:      strings.TrimRight(cfg.ComputeURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		signer:     signer,
	}
}

// protocolTags are prepended to every message so the network routes it as
// an AO message.
func protocolTags() Tags {
	return Tags{
		{Name: "Data-Protocol", Value: "ao"},
		{Name: "Variant", Value: "ao.TN.1"},
		{Name: "Type", Value: "Message"},
		{Name: "SDK", Value: sdkName},
	}
}

type muResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Send signs a message addressed to processID and submits it. It makes a
// single attempt and returns the message id.
func (c *Client) Send(ctx context.Context, processID string, tags Tags, data string) (string, error) {
	if c.signer == nil {
		return "", fmt.Errorf("send to %s: client has no signer", processID)
	}

	all := append(protocolTags(), tags...)
	item, err := c.signer.SignItem(DataItem{
		Target: processID,
		Anchor: strings.ReplaceAll(uuid.NewString(), "-", ""),
		Tags:   all,
		Data:   []byte(data),
	})
	if err != nil {
		return "", fmt.Errorf("send to %s: %w", processID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.muURL+"/", bytes.NewReader(item.Raw))
	if err != nil {
		return "", fmt.Errorf("send to %s: %w", processID, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send to %s: %w", processID, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("send to %s: messenger unit returned %d: %s",
			processID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var mr muResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &mr); err != nil {
			logger.DebugCF("ledger", "Unparseable messenger response", map[string]any{
				"status": resp.StatusCode,
				"body":   string(body),
			})
		}
	}
	if mr.Error != "" {
		return "", fmt.Errorf("send to %s: messenger unit: %s", processID, mr.Error)
	}

	id := item.ID
	if mr.ID != "" {
		id = mr.ID
	}
	logger.DebugCF("ledger", "Message submitted", map[string]any{
		"process": processID,
		"id":      id,
	})
	return id, nil
}

// Results fetches a page of evaluated messages for processID.
func (c *Client) Results(ctx context.Context, processID string, q ResultsQuery) (*Results, error) {
	params := url.Values{}
	if q.From != "" {
		params.Set("from", q.From)
	}
	if q.To != "" {
		params.Set("to", q.To)
	}
	if q.Sort != "" {
		params.Set("sort", string(q.Sort))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	endpoint := c.cuURL + "/results/" + url.PathEscape(processID)
	if enc := params.Encode(); enc != "" {
		endpoint += "?" + enc
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("results for %s: %w", processID, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("results for %s: %w", processID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("results for %s: compute unit returned %d: %s",
			processID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out Results
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("results for %s: decoding: %w", processID, err)
	}
	return &out, nil
}
