package cleantxtledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultHiveSignerURL = "https://hivesigner.com"
	DefaultCustomJSONID  = "collab_writing"
	DefaultApp           = "CleanTxt"
)

// TokenSource resolves the HiveSigner access token that authorizes posting on
// behalf of author.
type TokenSource interface {
	Token(ctx context.Context, author string) (string, error)
}

// StaticTokens maps authors to access tokens.
type StaticTokens map[string]string

func (s StaticTokens) Token(_ context.Context, author string) (string, error) {
	token, ok := s[author]
	if !ok || token == "" {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, author)
	}
	return token, nil
}

// Hive commits records as custom_json operations broadcast through the
// HiveSigner API. Each record is signed with its author's posting authority;
// HiveSigner refuses tokens that do not belong to the author.
type Hive struct {
	Endpoint string
	ID       string
	App      string
	Tokens   TokenSource
	Client   *http.Client
}

type customJSON struct {
	RequiredAuths        []string `json:"required_auths"`
	RequiredPostingAuths []string `json:"required_posting_auths"`
	ID                   string   `json:"id"`
	JSON                 string   `json:"json"`
}

type hivePayload struct {
	Author    string          `json:"author"`
	Content   json.RawMessage `json:"content"`
	Timestamp string          `json:"timestamp"`
	App       string          `json:"app"`
	Session   string          `json:"session"`
}

type broadcastRequest struct {
	Operations [][]interface{} `json:"operations"`
}

type broadcastResponse struct {
	Result *struct {
		ID       string `json:"id"`
		BlockNum int64  `json:"block_num"`
	} `json:"result"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (h *Hive) endpoint() string {
	if h.Endpoint == "" {
		return DefaultHiveSignerURL
	}
	return strings.TrimSuffix(h.Endpoint, "/")
}

func (h *Hive) client() *http.Client {
	if h.Client == nil {
		return http.DefaultClient
	}
	return h.Client
}

// Operation returns the custom_json operation that commits record.
func (h *Hive) Operation(record Record) ([]interface{}, error) {
	id, app := h.ID, h.App
	if id == "" {
		id = DefaultCustomJSONID
	}
	if app == "" {
		app = DefaultApp
	}

	payload, err := json.Marshal(hivePayload{
		Author:    record.Author,
		Content:   record.Content,
		Timestamp: record.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		App:       app,
		Session:   record.SessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode custom_json payload: %w", err)
	}

	return []interface{}{"custom_json", customJSON{
		RequiredAuths:        []string{},
		RequiredPostingAuths: []string{record.Author},
		ID:                   id,
		JSON:                 string(payload),
	}}, nil
}

func (h *Hive) Commit(ctx context.Context, record Record) (Receipt, error) {
	if h.Tokens == nil {
		return Receipt{}, fmt.Errorf("%w: no token source configured", ErrUnauthorized)
	}
	token, err := h.Tokens.Token(ctx, record.Author)
	if err != nil {
		return Receipt{}, err
	}

	op, err := h.Operation(record)
	if err != nil {
		return Receipt{}, err
	}
	body, err := json.Marshal(broadcastRequest{Operations: [][]interface{}{op}})
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to encode broadcast: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint()+"/api/broadcast", bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to build broadcast request: %w", err)
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client().Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("unable to reach hivesigner: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to read broadcast response: %w", err)
	}

	var out broadcastResponse
	if err := json.Unmarshal(data, &out); err != nil && resp.StatusCode < 300 {
		return Receipt{}, fmt.Errorf("failed to decode broadcast response: %w", err)
	}
	if resp.StatusCode >= 300 || out.Error != "" || out.Result == nil {
		reason := out.ErrorDescription
		if reason == "" {
			reason = out.Error
		}
		if reason == "" {
			reason = resp.Status
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return Receipt{}, fmt.Errorf("%w: %v: %v", ErrUnauthorized, record.Author, reason)
		}
		return Receipt{}, fmt.Errorf("%w: %v", ErrRejected, reason)
	}

	return Receipt{
		Ledger:        "hive",
		TransactionID: out.Result.ID,
		BlockNum:      out.Result.BlockNum,
		CommittedAt:   time.Now().UTC(),
	}, nil
}
