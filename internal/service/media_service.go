package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sritampatnaik/Magic-Canvas/internal/metrics"
	"github.com/sritampatnaik/Magic-Canvas/internal/storage"
	"github.com/sritampatnaik/Magic-Canvas/lib/logger/sl"
)

var (
	ErrStorageDisabled    = errors.New("object storage is not configured")
	ErrGenerationDisabled = errors.New("image generation is disabled")
)

type Uploader interface {
	Upload(ctx context.Context, objectKey string, data []byte, contentType string) (string, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt, imageURL string) (string, error)
}

type MediaService struct {
	uploader  Uploader
	generator Generator
	log       *slog.Logger
	now       func() time.Time
}

// NewMediaService wires uploads and generation. Either collaborator may be
// nil, which disables the matching feature.
func NewMediaService(uploader Uploader, generator Generator, log *slog.Logger) *MediaService {
	if log == nil {
		log = slog.Default()
	}
	return &MediaService{
		uploader:  uploader,
		generator: generator,
		log:       log,
		now:       time.Now,
	}
}

// Upload stores the image carried by dataURL and returns its public URL.
// contentType overrides the type declared inside the data URL.
func (s *MediaService) Upload(ctx context.Context, dataURL, contentType string) (string, error) {
	const op = "service.media.upload"
	log := s.log.With(slog.String("op", op))

	if strings.TrimSpace(dataURL) == "" {
		return "", storage.ErrMissingDataURL
	}
	if s.uploader == nil {
		return "", ErrStorageDisabled
	}

	data, declared, err := storage.DecodeDataURL(dataURL)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("invalid").Inc()
		return "", err
	}
	if contentType = strings.TrimSpace(contentType); contentType == "" {
		contentType = declared
	}

	key, err := storage.ObjectKey(s.now())
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	url, err := s.uploader.Upload(ctx, key, data, contentType)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		log.Error("upload failed", slog.String("key", key), sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	log.Info("image uploaded", slog.String("key", key), slog.Int("bytes", len(data)))
	return url, nil
}

func (s *MediaService) Generate(ctx context.Context, prompt, imageURL string) (string, error) {
	const op = "service.media.generate"
	log := s.log.With(slog.String("op", op))

	if s.generator == nil {
		return "", ErrGenerationDisabled
	}

	url, err := s.generator.Generate(ctx, prompt, strings.TrimSpace(imageURL))
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues("error").Inc()
		log.Error("generation failed", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	metrics.GenerationsTotal.WithLabelValues("ok").Inc()
	return url, nil
}

func (s *MediaService) GenerationEnabled() bool {
	return s.generator != nil
}
