package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Media uploads reference images and requests generations.
type Media interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
	Generate(ctx context.Context, prompt, imageURL string) (string, error)
}

// HTTPMedia calls the canvas server's upload and generate endpoints.
type HTTPMedia struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPMedia(baseURL string) *HTTPMedia {
	return &HTTPMedia{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

type uploadRequest struct {
	DataURL     string `json:"dataUrl"`
	ContentType string `json:"contentType,omitempty"`
}

type generateRequest struct {
	Prompt   string `json:"prompt"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type urlResponse struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

func (m *HTTPMedia) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	return m.post(ctx, "/api/upload", uploadRequest{DataURL: dataURL, ContentType: contentType})
}

func (m *HTTPMedia) Generate(ctx context.Context, prompt, imageURL string) (string, error) {
	return m.post(ctx, "/api/generate", generateRequest{Prompt: prompt, ImageURL: imageURL})
}

func (m *HTTPMedia) post(ctx context.Context, path string, body any) (string, error) {
	endpoint, err := url.JoinPath(m.BaseURL, path)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out urlResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return "", ErrGenerationDisabled
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, out.Error)
	case decodeErr != nil:
		return "", fmt.Errorf("decode %s response: %w", path, decodeErr)
	case out.URL == "":
		return "", fmt.Errorf("%s: empty url", path)
	}
	return out.URL, nil
}
