// Package rest is the HTTP client for the document API served by
// internal/http, and the home of its wire types.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"expenses/internal/remote"
)

var _ remote.Collection = (*Client)(nil)

type (
	InsertResponse struct {
		ID string `json:"id"`
	}

	QueryResponse struct {
		Documents []remote.Snapshot `json:"documents"`
	}

	ErrorResponse struct {
		Error string `json:"error"`
	}

	// TokenSource returns the bearer token for the next request.
	TokenSource func(ctx context.Context) (string, error)
)

// StatusError is a non-2xx answer. Its message is the server's, verbatim.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.StatusCode)
	}
	return e.Message
}

// Is maps status codes onto the remote package's sentinel errors.
func (e *StatusError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusNotFound:
		return target == remote.ErrNotFound
	case http.StatusForbidden, http.StatusUnauthorized:
		return target == remote.ErrPermissionDenied
	case http.StatusBadRequest:
		return target == remote.ErrInvalidQuery
	}
	return false
}

func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

type Client struct {
	baseURL *url.URL
	token   TokenSource
	http    *http.Client
}

// New returns a client for baseURL. A nil httpClient gets a 30 second timeout.
func New(baseURL string, token TokenSource, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: u, token: token, http: httpClient}, nil
}

// DocumentsPath is the collection route shared with the server.
func DocumentsPath(coll string) string {
	return "/v1/collections/" + url.PathEscape(coll) + "/documents"
}

// QueryPath is the query route shared with the server.
func QueryPath(coll string) string {
	return "/v1/collections/" + url.PathEscape(coll) + "/query"
}

func (c *Client) Insert(ctx context.Context, coll string, doc remote.Document) (string, error) {
	var out InsertResponse
	if err := c.do(ctx, http.MethodPost, DocumentsPath(coll), doc, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("insert: server returned no id")
	}
	return out.ID, nil
}

func (c *Client) Get(ctx context.Context, coll, id string) (remote.Document, error) {
	var out remote.Snapshot
	if err := c.do(ctx, http.MethodGet, DocumentsPath(coll)+"/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return restore(out.Data), nil
}

func (c *Client) Update(ctx context.Context, coll, id string, patch remote.Document) error {
	return c.do(ctx, http.MethodPatch, DocumentsPath(coll)+"/"+url.PathEscape(id), patch, nil)
}

func (c *Client) Delete(ctx context.Context, coll, id string) error {
	return c.do(ctx, http.MethodDelete, DocumentsPath(coll)+"/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Query(ctx context.Context, coll string, q remote.Query) ([]remote.Snapshot, error) {
	var out QueryResponse
	if err := c.do(ctx, http.MethodPost, QueryPath(coll), q, &out); err != nil {
		return nil, err
	}
	for i := range out.Documents {
		out.Documents[i].Data = restore(out.Documents[i].Data)
	}
	return out.Documents, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return fmt.Errorf("get token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		return &StatusError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// restore turns decoded placeholder maps back into remote.ServerTimestamp.
func restore(doc remote.Document) remote.Document {
	if doc == nil {
		return remote.Document{}
	}
	for k, v := range doc {
		if remote.IsServerTimestamp(v) {
			doc[k] = remote.ServerTimestamp
		}
	}
	return doc
}
