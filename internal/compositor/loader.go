package compositor

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sritampatnaik/Magic-Canvas/lib/logger/sl"
)

const maxImageBytes = 20 << 20

type ImageLoader interface {
	Load(ctx context.Context, src string) (image.Image, error)
}

// HTTPLoader fetches images over HTTP. The first attempt carries Header
// (credentials, referer); if it fails the image is requested once more
// without any extra headers.
type HTTPLoader struct {
	Client *http.Client
	Header http.Header
	Log    *slog.Logger
}

func NewHTTPLoader(header http.Header, log *slog.Logger) *HTTPLoader {
	if log == nil {
		log = slog.Default()
	}
	return &HTTPLoader{
		Client: &http.Client{Timeout: 15 * time.Second},
		Header: header,
		Log:    log,
	}
}

func (l *HTTPLoader) Load(ctx context.Context, src string) (image.Image, error) {
	img, err := l.fetch(ctx, src, l.Header)
	if err == nil {
		return img, nil
	}
	l.Log.Debug("image fetch failed, retrying bare", slog.String("src", src), sl.Err(err))

	img, err = l.fetch(ctx, src, nil)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", src, err)
	}
	return img, nil
}

func (l *HTTPLoader) fetch(ctx context.Context, src string, header http.Header) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}
