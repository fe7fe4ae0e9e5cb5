package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/querydesk/querydesk-cli/internal/model"
)

const (
	csrfCookieName = "csrftoken"
	csrfHeaderName = "X-CSRFToken"

	DefaultPreviewLimit = 50
)

type Client struct {
	BaseURL     string
	AgentPrefix string
	HTTPClient  *http.Client
	Timeout     time.Duration

	// CSRFToken is sent when the cookie jar has no csrftoken cookie.
	CSRFToken string
}

func NewClient(baseURL string, agentPrefix string, timeout time.Duration) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout}).DialContext
	transport.TLSHandshakeTimeout = timeout
	// NOTE: Do not set ResponseHeaderTimeout here.
	// Translating a prompt and running it can legitimately take a long time
	// before the backend sends headers. Per-call deadlines come from ctx.

	jar, _ := cookiejar.New(nil)

	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		AgentPrefix: normalizePrefix(agentPrefix),
		HTTPClient: &http.Client{
			Transport: transport,
			Jar:       jar,
		},
		Timeout: timeout,
	}
}

func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return ""
	}
	return "/" + strings.Trim(p, "/")
}

type ConnectRequest struct {
	URL string `json:"url"`
}

type TableListResponse struct {
	Tables []string `json:"tables"`
}

type ColumnListResponse struct {
	Columns []string `json:"columns"`
}

type RowsResponse struct {
	Rows []model.Row `json:"rows"`
}

type TransformRequest struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
}

// IngestedTable is one table the backend parsed out of an upload or a live connection.
type IngestedTable struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

type IngestResponse struct {
	Tables []IngestedTable `json:"tables"`
}

type ChatRequest struct {
	UserMessage string `json:"user_message"`
}

type ChatResponse struct {
	Reply    string `json:"reply"`
	Message  string `json:"message"`
	Response string `json:"response"`
}

// Text returns whichever reply field the backend filled.
func (r *ChatResponse) Text() string {
	if r == nil {
		return ""
	}
	for _, s := range []string{r.Reply, r.Message, r.Response} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

type AgentRequest struct {
	Databases []model.DatabaseConfig `json:"databases"`
	Prompt    string                 `json:"prompt"`
}

// AgentResult is one element of the /db-agent/run response. Every field may
// be missing; missing fields decode as absent.
type AgentResult struct {
	DbType   string           `json:"dbType"`
	DbHost   string           `json:"dbHost"`
	Query    *model.QueryInfo `json:"query"`
	Rows     *model.ResultSet `json:"rows"`
	Metadata map[string]any   `json:"metadata,omitempty"`
	Error    *string          `json:"error"`
}

// ErrorResponse covers the shapes backends use for error bodies.
type ErrorResponse struct {
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
	Error   string          `json:"error"`
}

func (e ErrorResponse) text() string {
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	if len(e.Detail) > 0 {
		var s string
		if json.Unmarshal(e.Detail, &s) == nil {
			if strings.TrimSpace(s) != "" {
				return s
			}
		} else {
			return string(e.Detail)
		}
	}
	return strings.TrimSpace(e.Error)
}

// ApiError is a non-2xx backend response.
type ApiError struct {
	Status  int
	Message string
}

func (e *ApiError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("API error: %s", e.Message)
}

// BackendMessage is the message the backend itself supplied, if any.
func (e *ApiError) BackendMessage() string {
	if e == nil {
		return ""
	}
	if e.Message == fmt.Sprintf("status=%d", e.Status) {
		return ""
	}
	return e.Message
}

func (c *Client) UploadFile(ctx context.Context, path string) (*IngestResponse, error) {
	return c.upload(ctx, "/upload-file", path)
}

func (c *Client) UploadSQL(ctx context.Context, path string) (*IngestResponse, error) {
	return c.upload(ctx, "/upload-sql", path)
}

func (c *Client) ConnectDB(ctx context.Context, dbURL string) (*IngestResponse, error) {
	body, err := c.post(ctx, c.BaseURL+"/connect-db", &ConnectRequest{URL: dbURL})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp IngestResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Tables(ctx context.Context) (*TableListResponse, error) {
	body, err := c.get(ctx, c.BaseURL+"/tables")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp TableListResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Columns(ctx context.Context, table string) (*ColumnListResponse, error) {
	urlStr := fmt.Sprintf("%s/columns/%s", c.BaseURL, url.PathEscape(table))
	body, err := c.get(ctx, urlStr)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp ColumnListResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Preview(ctx context.Context, table string, limit int) (*RowsResponse, error) {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	urlStr := fmt.Sprintf("%s/preview/%s?%s", c.BaseURL, url.PathEscape(table), q.Encode())

	body, err := c.get(ctx, urlStr)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp RowsResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Transform(ctx context.Context, table string, columns []string) (*RowsResponse, error) {
	body, err := c.post(ctx, c.BaseURL+"/transform", &TransformRequest{Table: table, Columns: columns})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp RowsResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Chat(ctx context.Context, message string) (*ChatResponse, error) {
	body, err := c.post(ctx, c.BaseURL+"/chat", &ChatRequest{UserMessage: message})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp ChatResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunAgent asks the backend to translate the prompt and run it against
// each database in req.
func (c *Client) RunAgent(ctx context.Context, req *AgentRequest) ([]AgentResult, error) {
	urlStr := c.BaseURL + c.AgentPrefix + "/db-agent/run"
	body, err := c.post(ctx, urlStr, req)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp []AgentResult
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("malformed agent response: %w", err)
	}
	return resp, nil
}

func (c *Client) upload(ctx context.Context, path string, filePath string) (*IngestResponse, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp IngestResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, urlStr string, body interface{}) (io.ReadCloser, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) get(ctx context.Context, urlStr string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (io.ReadCloser, error) {
	if token := c.csrfToken(req.URL); token != "" {
		req.Header.Set(csrfHeaderName, token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		resp.Body.Close()

		msg := errResp.text()
		if msg == "" {
			msg = fmt.Sprintf("status=%d", resp.StatusCode)
		}
		return nil, &ApiError{Status: resp.StatusCode, Message: msg}
	}

	return resp.Body, nil
}

func (c *Client) csrfToken(u *url.URL) string {
	if c.HTTPClient != nil && c.HTTPClient.Jar != nil {
		for _, ck := range c.HTTPClient.Jar.Cookies(u) {
			if ck.Name == csrfCookieName && ck.Value != "" {
				return ck.Value
			}
		}
	}
	return c.CSRFToken
}
