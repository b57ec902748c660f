package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// API is the role-namespaced notification collaborator. ns is the path
// segment resolved by rolepolicy.APINamespace.
type API interface {
	List(ctx context.Context, token, ns string, filter ListFilter) ([]Notification, error)
	UnreadCount(ctx context.Context, token, ns string) (UnreadAggregate, error)
	Get(ctx context.Context, token, ns, id string) (*Notification, error)
	MarkRead(ctx context.Context, token, ns, id string) error
	MarkAllRead(ctx context.Context, token, ns string, filter ListFilter) (int, error)
	Delete(ctx context.Context, token, ns, id string) error
	DeleteAllRead(ctx context.Context, token, ns string) (int, error)
}

// Client is the REST implementation of API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a Client for the given API base URL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

type listResponse struct {
	Notifications []Notification `json:"notifications"`
}

type countResponse struct {
	Unread UnreadAggregate `json:"unread"`
}

type markedResponse struct {
	MarkedCount int `json:"marked_count"`
}

type deletedResponse struct {
	DeletedCount int `json:"deleted_count"`
}

// List fetches notifications for the role's namespace.
func (c *Client) List(ctx context.Context, token, ns string, filter ListFilter) ([]Notification, error) {
	var out listResponse
	path := "/" + ns + "/notifications" + filterQuery(filter)
	if err := c.do(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

// UnreadCount fetches the unread aggregate.
func (c *Client) UnreadCount(ctx context.Context, token, ns string) (UnreadAggregate, error) {
	var out countResponse
	if err := c.do(ctx, http.MethodGet, "/"+ns+"/notifications/unread-count", token, nil, &out); err != nil {
		return UnreadAggregate{}, err
	}
	return out.Unread, nil
}

// Get fetches a single notification.
func (c *Client) Get(ctx context.Context, token, ns, id string) (*Notification, error) {
	var out Notification
	if err := c.do(ctx, http.MethodGet, "/"+ns+"/notifications/"+url.PathEscape(id), token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead marks one notification read.
func (c *Client) MarkRead(ctx context.Context, token, ns, id string) error {
	return c.do(ctx, http.MethodPatch, "/"+ns+"/notifications/"+url.PathEscape(id)+"/read", token, nil, nil)
}

// MarkAllRead marks every unread notification in the filtered scope read and
// returns the affected count.
func (c *Client) MarkAllRead(ctx context.Context, token, ns string, filter ListFilter) (int, error) {
	var out markedResponse
	if err := c.do(ctx, http.MethodPost, "/"+ns+"/notifications/mark-all-read", token, filter, &out); err != nil {
		return 0, err
	}
	return out.MarkedCount, nil
}

// Delete removes one notification.
func (c *Client) Delete(ctx context.Context, token, ns, id string) error {
	return c.do(ctx, http.MethodDelete, "/"+ns+"/notifications/"+url.PathEscape(id), token, nil, nil)
}

// DeleteAllRead removes all read notifications and returns the count.
func (c *Client) DeleteAllRead(ctx context.Context, token, ns string) (int, error) {
	var out deletedResponse
	if err := c.do(ctx, http.MethodDelete, "/"+ns+"/notifications/read", token, nil, &out); err != nil {
		return 0, err
	}
	return out.DeletedCount, nil
}

func filterQuery(filter ListFilter) string {
	values := url.Values{}
	if filter.Category != "" {
		values.Set("category", string(filter.Category))
	}
	if filter.Priority != "" {
		values.Set("priority", string(filter.Priority))
	}
	if filter.UnreadOnly {
		values.Set("unread_only", "true")
	}
	if filter.Page > 0 {
		values.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.PerPage > 0 {
		values.Set("per_page", strconv.Itoa(filter.PerPage))
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

func (c *Client) do(ctx context.Context, method, path, token string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("notify: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return &Error{Status: 0}
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(res.Body, 1<<16))
		return decodeError(res.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("notify: decode response: %w", err)
	}
	return nil
}
