// Package docmanager is a client for the document endpoints. Manager keeps
// the state a UI needs: the document list, upload progress and a status message.
package docmanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Document mirrors the server's document representation.
type Document struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	CompanyID    string    `json:"companyId"`
	FileName     string    `json:"fileName"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	DocumentType string    `json:"documentType"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Event is one upload progress notification.
type Event struct {
	DocumentID string `json:"documentId"`
	Status     string `json:"status"`
}

// Download is a presigned link for a document.
type Download struct {
	URL      string `json:"downloadUrl"`
	FileName string `json:"filename"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// API is the server surface used by Manager.
type API interface {
	List(ctx context.Context) ([]Document, error)
	Search(ctx context.Context, query string) ([]Document, error)
	Upload(ctx context.Context, fileName string, body io.Reader, docType string) (Document, error)
	Delete(ctx context.Context, id string) (string, error)
	Download(ctx context.Context, id string) (Download, error)
	Stream(ctx context.Context, fn func(Event)) error
}

// Client talks to the /api/v1 document routes with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a Client. baseURL is the server origin, e.g. http://localhost:8080.
// The http client must not set a Timeout if Stream is used.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api/v1",
		token:      token,
		httpClient: httpClient,
	}
}

type envelope struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	Data        json.RawMessage `json:"data"`
	Documents   json.RawMessage `json:"documents"`
	Document    json.RawMessage `json:"document"`
	DownloadURL string          `json:"downloadUrl"`
	Filename    string          `json:"filename"`
}

func (c *Client) List(ctx context.Context) ([]Document, error) {
	env, err := c.do(ctx, http.MethodGet, "/documents", nil, "")
	if err != nil {
		return nil, err
	}
	return decodeDocuments(env.Data)
}

func (c *Client) Search(ctx context.Context, query string) ([]Document, error) {
	env, err := c.do(ctx, http.MethodGet, "/documents/search?q="+url.QueryEscape(query), nil, "")
	if err != nil {
		return nil, err
	}
	if len(env.Documents) == 0 {
		return decodeDocuments(env.Data)
	}
	return decodeDocuments(env.Documents)
}

// Upload streams body as the multipart field "document".
func (c *Client) Upload(ctx context.Context, fileName string, body io.Reader, docType string) (Document, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeUpload(mw, fileName, body, docType)
		pw.CloseWithError(err)
	}()

	env, err := c.do(ctx, http.MethodPost, "/documents", pr, mw.FormDataContentType())
	// unblock the writer if the request ended early
	_ = pr.Close()
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(env.Document, &doc); err != nil {
		return Document{}, fmt.Errorf("decode uploaded document: %w", err)
	}
	return doc, nil
}

func writeUpload(mw *multipart.Writer, fileName string, body io.Reader, docType string) error {
	if docType != "" {
		if err := mw.WriteField("documentType", docType); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("document", fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, body); err != nil {
		return err
	}
	return mw.Close()
}

// Delete returns the server's message, which distinguishes a soft success.
func (c *Client) Delete(ctx context.Context, id string) (string, error) {
	env, err := c.do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(id), nil, "")
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func (c *Client) Download(ctx context.Context, id string) (Download, error) {
	env, err := c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(id)+"/download", nil, "")
	if err != nil {
		return Download{}, err
	}
	if env.DownloadURL == "" {
		msg := env.Message
		if msg == "" {
			msg = "Failed to get download URL"
		}
		return Download{}, errors.New(msg)
	}
	return Download{URL: env.DownloadURL, FileName: env.Filename}, nil
}

// Stream opens the progress stream and calls fn for each event until ctx
// ends or the server closes the connection.
func (c *Client) Stream(ctx context.Context, fn func(Event)) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/documents/progress", nil, "")
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readError(resp)
	}
	return readEvents(resp.Body, func(name string, data []byte) {
		if name != progressEventName {
			return
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return
		}
		fn(ev)
	})
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (envelope, error) {
	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return envelope{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return envelope{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return envelope{}, readError(resp)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return envelope{}, fmt.Errorf("decode response: %w", err)
	}
	return env, nil
}

func readError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Message == "" {
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	return &APIError{Status: resp.StatusCode, Message: env.Message}
}

func decodeDocuments(raw json.RawMessage) ([]Document, error) {
	docs := []Document{}
	if len(raw) == 0 || string(raw) == "null" {
		return docs, nil
	}
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	return docs, nil
}
