// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/wayfare-labs/tripchat/lib/netutil"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the backend base URL (e.g., "https://api.example.travel").
	BaseURL string
	// Token is the bearer token for authenticated requests. Empty for
	// anonymous support-widget sessions.
	Token string
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Client talks to the chat backend's REST API. One Client is shared
// by every component needing snapshot data; it is safe for concurrent
// use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("api: BaseURL is required")
	}
	// Validate the URL structure, but store the string form and build
	// request URLs by concatenation: url.URL.String() can re-encode
	// path segments that are already encoded.
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("api: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		token:      config.Token,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// CloseIdleConnections drops idle pooled connections. Call after a
// network disruption so the next request opens a fresh socket instead
// of reusing a poisoned one.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// Conversations fetches the viewer's full conversation list, ordered
// by last activity descending. This is the directory's snapshot: the
// first page is authoritative and replaces any prior list wholesale.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v1/chat/conversations", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("api: fetching conversations: %w", err)
	}
	var response conversationsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("api: parsing conversations response: %w", err)
	}
	return response.Conversations, nil
}

// Conversation fetches a single conversation by ID.
func (c *Client) Conversation(ctx context.Context, conversationID string) (*Conversation, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("api: conversation ID is required")
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v1/chat/conversations/"+url.PathEscape(conversationID), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("api: fetching conversation %s: %w", conversationID, err)
	}
	var conversation Conversation
	if err := json.Unmarshal(body, &conversation); err != nil {
		return nil, fmt.Errorf("api: parsing conversation response: %w", err)
	}
	return &conversation, nil
}

// Messages fetches one page of a conversation's message history in
// chronological order. The response carries the conversation ID so
// callers can discard pages that arrive after the selection changed.
func (c *Client) Messages(ctx context.Context, conversationID string, options HistoryOptions) (*HistoryPage, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("api: conversation ID is required")
	}
	query := url.Values{}
	if options.Limit > 0 {
		query.Set("limit", strconv.Itoa(options.Limit))
	}
	if options.Before != "" {
		query.Set("before", options.Before)
	}
	path := "/api/v1/chat/conversations/" + url.PathEscape(conversationID) + "/messages"
	body, err := c.doRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, fmt.Errorf("api: fetching history for %s: %w", conversationID, err)
	}
	var page HistoryPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("api: parsing history response: %w", err)
	}
	if page.ConversationID == "" {
		page.ConversationID = conversationID
	}
	return &page, nil
}

// SupportThread fetches the caller's support conversation, creating
// it on first contact. The backend keys the thread on the bearer
// token when present, otherwise on the request's visitor ID.
func (c *Client) SupportThread(ctx context.Context, request SupportThreadRequest) (*Conversation, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/api/v1/support/thread", nil, request)
	if err != nil {
		return nil, fmt.Errorf("api: fetching support thread: %w", err)
	}
	var conversation Conversation
	if err := json.Unmarshal(body, &conversation); err != nil {
		return nil, fmt.Errorf("api: parsing support thread response: %w", err)
	}
	c.logger.Info("support thread resolved", "conversation_id", conversation.ID)
	return &conversation, nil
}

// SupportMessages fetches one history page of the support thread.
// Same contract as Messages; the support widget uses this endpoint so
// it works without the main chat feature's permissions.
func (c *Client) SupportMessages(ctx context.Context, conversationID string, options HistoryOptions) (*HistoryPage, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("api: conversation ID is required")
	}
	query := url.Values{}
	if options.Limit > 0 {
		query.Set("limit", strconv.Itoa(options.Limit))
	}
	if options.Before != "" {
		query.Set("before", options.Before)
	}
	path := "/api/v1/support/thread/" + url.PathEscape(conversationID) + "/messages"
	body, err := c.doRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, fmt.Errorf("api: fetching support history: %w", err)
	}
	var page HistoryPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("api: parsing support history response: %w", err)
	}
	if page.ConversationID == "" {
		page.ConversationID = conversationID
	}
	return &page, nil
}

// doRequest performs an HTTP request and returns the response body.
// On 2xx, returns the body. On 4xx/5xx, returns the body alongside a
// *APIError so callers can inspect structured failures.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, requestBody any) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	// All backend error responses share one JSON shape.
	var apiErr APIError
	if jsonErr := json.Unmarshal(responseBody, &apiErr); jsonErr != nil || apiErr.Code == "" {
		// Non-JSON error (proxy, gateway). Fail loud with the raw body.
		return nil, fmt.Errorf("unexpected %d response from %s %s: %s",
			response.StatusCode, method, path, string(responseBody))
	}
	apiErr.StatusCode = response.StatusCode

	return responseBody, &apiErr
}
