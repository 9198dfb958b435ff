// Package api is the REST client for the chat backend: demo auth, history
// pages, media presigning, and the raw byte transfer to a presigned target.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/50naija1/pizuna-app/internal/proto"
)

// ServerError is a non-success HTTP response from the backend.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

// Client calls the backend REST API. Every request carries the bearer token
// set via SetToken and is bounded by the configured request timeout.
type Client struct {
	base  string
	http  *http.Client
	token string
	log   *zerolog.Logger
}

// New creates a client for the given base URL.
func New(baseURL string, timeout time.Duration, logger *zerolog.Logger) *Client {
	return &Client{
		base: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
		log:  logger,
	}
}

// SetToken sets the bearer token attached to subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// DemoAuth exchanges a phone and display name for a token and user record.
func (c *Client) DemoAuth(ctx context.Context, phone, name string) (proto.DemoAuthResponse, error) {
	var resp proto.DemoAuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/demo",
		proto.DemoAuthRequest{Phone: phone, Name: name}, &resp)
	if err != nil {
		return proto.DemoAuthResponse{}, fmt.Errorf("demo auth: %w", err)
	}
	return resp, nil
}

// History fetches the stored messages of a conversation.
func (c *Client) History(ctx context.Context, conversationID string) ([]proto.MessageReceive, error) {
	var resp proto.HistoryResponse
	path := "/api/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return resp.Messages, nil
}

// Presign asks the server for a write target and the durable reference that
// will address the uploaded file afterwards.
func (c *Client) Presign(ctx context.Context, fileName, fileType string) (proto.PresignResponse, error) {
	var resp proto.PresignResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/media/presign",
		proto.PresignRequest{FileName: fileName, FileType: fileType}, &resp)
	if err != nil {
		return proto.PresignResponse{}, fmt.Errorf("presign: %w", err)
	}
	if resp.UploadURL == "" || resp.FileURL == "" {
		return proto.PresignResponse{}, fmt.Errorf("presign: incomplete response")
	}
	return resp, nil
}

// Upload transfers the raw bytes to the presigned write target with the
// content type the server specified.
func (c *Client) Upload(ctx context.Context, uploadURL, contentType string, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = size

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload: %w", &ServerError{Status: resp.StatusCode})
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, out any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := readErrorMessage(resp.Body)
		c.log.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("request rejected")
		return &ServerError{Status: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var body proto.ErrorResponse
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(data))
}
