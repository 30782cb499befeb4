// Package quickplan is a small Go client for the quickplan web endpoints. It
// speaks the same form posts the htmx front end sends.
package quickplan

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
const DefaultHTTPTimeout = 15 * time.Second

var optionValue = regexp.MustCompile(`value="([^"]+)"`)

// Client wraps the HTTP interactions with a quickplan server.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// APIError is returned for any 4xx or 5xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("quickplan api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the server at rawURL. When httpClient is
// nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// CreatePlan creates a plan and returns its url id.
func (c *Client) CreatePlan(ctx context.Context, name string) (string, error) {
	resp, _, err := c.postForm(ctx, "/plan", url.Values{"new_plan": {name}})
	if err != nil {
		return "", err
	}
	redirect := resp.Header.Get("HX-Redirect")
	urlID := strings.TrimPrefix(redirect, "plan/")
	if urlID == "" || urlID == redirect {
		return "", fmt.Errorf("quickplan: unexpected redirect %q", redirect)
	}
	return urlID, nil
}

// Join adds a participant to the plan and returns the participant's web id,
// which is needed to toggle dates.
func (c *Client) Join(ctx context.Context, urlID, name string) (string, error) {
	_, body, err := c.postForm(ctx, "/user/"+url.PathEscape(urlID), url.Values{"username": {name}})
	if err != nil {
		return "", err
	}
	m := optionValue.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("quickplan: no participant id in response")
	}
	return html.UnescapeString(string(m[1])), nil
}

// ToggleDate flips one day for a participant and returns the re-rendered
// calendar fragment.
func (c *Client) ToggleDate(ctx context.Context, urlID, webID string, date time.Time) (string, error) {
	_, body, err := c.postForm(ctx, "/plan/"+url.PathEscape(urlID), url.Values{
		"date": {date.Format("2006-01-02")},
		"user": {webID},
	})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// DeletePlan removes the plan with all of its participants and dates.
func (c *Client) DeletePlan(ctx context.Context, urlID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/plan/"+url.PathEscape(urlID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("HX-Request", "true")
	_, _, err = c.do(req)
	return err
}

// Healthy reports whether the server answers its health check.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	_, _, err = c.do(req)
	return err
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (*http.Response, []byte, error) {
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	return c.do(req)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, nil, &APIError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(data))}
	}
	return resp, data, nil
}
