// Package imagegen turns a prompt and an optional reference image into a
// new image stored in object storage.
package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/sritampatnaik/Magic-Canvas/internal/storage"
)

const (
	DefaultModel   = string(openai.ImageModelGPTImage1)
	maxSourceBytes = 20 << 20
)

var (
	ErrDisabled    = errors.New("image generation is disabled")
	ErrEmptyPrompt = errors.New("prompt is required")
	ErrEmptyResult = errors.New("generation returned no image")
)

type Options struct {
	APIKey  string
	BaseURL string
	Model   string
}

// ImageAPI is the subset of the OpenAI images service in use.
type ImageAPI interface {
	Edit(ctx context.Context, body openai.ImageEditParams, opts ...option.RequestOption) (*openai.ImagesResponse, error)
	Generate(ctx context.Context, body openai.ImageGenerateParams, opts ...option.RequestOption) (*openai.ImagesResponse, error)
}

type Uploader interface {
	Upload(ctx context.Context, objectKey string, data []byte, contentType string) (string, error)
}

type Generator struct {
	images   ImageAPI
	model    string
	uploader Uploader
	http     *http.Client
	log      *slog.Logger
}

// New builds a generator backed by the OpenAI images API. An empty API key
// yields ErrDisabled.
func New(opts Options, uploader Uploader, log *slog.Logger) (*Generator, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, ErrDisabled
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(base, "/")+"/"))
	}
	client := openai.NewClient(reqOpts...)
	return NewWithAPI(&client.Images, opts.Model, uploader, log), nil
}

func NewWithAPI(images ImageAPI, model string, uploader Uploader, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	if model == "" {
		model = DefaultModel
	}
	return &Generator{
		images:   images,
		model:    model,
		uploader: uploader,
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

// Generate edits the reference image at imageURL according to prompt, or
// generates from the prompt alone when imageURL is empty, and returns the
// public URL of the stored result.
func (g *Generator) Generate(ctx context.Context, prompt, imageURL string) (string, error) {
	const op = "imagegen.generate"
	log := g.log.With(slog.String("op", op), slog.Bool("has_reference", imageURL != ""))

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	var (
		resp *openai.ImagesResponse
		err  error
	)
	if imageURL != "" {
		ref, contentType, ferr := g.source(ctx, imageURL)
		if ferr != nil {
			return "", fmt.Errorf("%s: reference: %w", op, ferr)
		}
		resp, err = g.images.Edit(ctx, openai.ImageEditParams{
			Image: openai.ImageEditParamsImageUnion{
				OfFile: openai.File(bytes.NewReader(ref), "reference.png", contentType),
			},
			Prompt: prompt,
			Model:  openai.ImageModel(g.model),
		})
	} else {
		resp, err = g.images.Generate(ctx, openai.ImageGenerateParams{
			Prompt: prompt,
			Model:  openai.ImageModel(g.model),
		})
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	data, err := g.result(ctx, resp)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	key, err := storage.ObjectKey(time.Now())
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	url, err := g.uploader.Upload(ctx, key, data, storage.DefaultContentType)
	if err != nil {
		return "", fmt.Errorf("%s: store result: %w", op, err)
	}

	log.Info("image generated", slog.String("url", url))
	return url, nil
}

func (g *Generator) result(ctx context.Context, resp *openai.ImagesResponse) ([]byte, error) {
	if resp == nil || len(resp.Data) == 0 {
		return nil, ErrEmptyResult
	}
	img := resp.Data[0]
	if img.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		return data, nil
	}
	if img.URL != "" {
		data, _, err := g.fetch(ctx, img.URL)
		return data, err
	}
	return nil, ErrEmptyResult
}

// source reads a reference image given as a data URL or an http(s) URL.
func (g *Generator) source(ctx context.Context, ref string) ([]byte, string, error) {
	if strings.HasPrefix(ref, "data:") {
		return storage.DecodeDataURL(ref)
	}
	return g.fetch(ctx, ref)
}

func (g *Generator) fetch(ctx context.Context, src string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: unexpected status %d", src, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return nil, "", err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = storage.DefaultContentType
	}
	return data, contentType, nil
}
