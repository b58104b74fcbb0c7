package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Client is the REST client for the chat API. Authentication is delegated to
// the supplied oauth2.TokenSource; on a 401 the token is requested again and
// the call retried once, so an external refresh flow stays transparent to
// callers.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     oauth2.TokenSource
}

// NewClient builds a client for the API rooted at baseURL (including the
// /api prefix, e.g. "https://host/api").
func NewClient(baseURL string, tokens oauth2.TokenSource) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type errorBody struct {
	Detail  string `json:"detail"`
	Err     string `json:"error"`
	Message string `json:"message"`
}

func (b errorBody) text() string {
	switch {
	case b.Detail != "":
		return b.Detail
	case b.Err != "":
		return b.Err
	default:
		return b.Message
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	resp, err := c.roundTrip(ctx, method, path, payload, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		return &APIError{StatusCode: resp.StatusCode, Detail: eb.text()}
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// roundTrip performs one request attempt, retrying exactly once after a 401
// with a freshly requested token.
func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, retried bool) (*http.Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("fetch token: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !retried {
		resp.Body.Close()
		return c.roundTrip(ctx, method, path, payload, true)
	}
	return resp, nil
}

// Conversations lists the authenticated user's conversations.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	if err := c.do(ctx, http.MethodGet, "/chat/conversations/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateConversation creates the conversation for a contract. The server
// treats this as create-if-absent, so calling it for an existing
// conversation returns the existing one.
func (c *Client) CreateConversation(ctx context.Context, contractID string) (*Conversation, error) {
	body := map[string]string{"contract_id": contractID}
	var out Conversation
	if err := c.do(ctx, http.MethodPost, "/chat/conversations/", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Messages fetches the full message history of a conversation, oldest first.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	var out []Message
	path := fmt.Sprintf("/chat/conversations/%s/messages/", conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type sendMessageReq struct {
	Text        string    `json:"text"`
	MessageType string    `json:"message_type"`
	ReplyingTo  *ReplyRef `json:"replying_to,omitempty"`
}

// SendMessage posts a text message and returns the server-confirmed record.
func (c *Client) SendMessage(ctx context.Context, conversationID, text string, replyingTo *ReplyRef) (*Message, error) {
	body := sendMessageReq{Text: text, MessageType: "text", ReplyingTo: replyingTo}
	var out Message
	path := fmt.Sprintf("/chat/conversations/%s/send_message/", conversationID)
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkAsRead marks every message from the other party as read.
func (c *Client) MarkAsRead(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/chat/conversations/%s/mark_as_read/", conversationID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// ClearChat empties the conversation history.
func (c *Client) ClearChat(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/chat/conversations/%s/clear_chat/", conversationID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}
