package storage

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const DefaultContentType = "image/png"

var (
	ErrMissingDataURL = errors.New("missing dataUrl")
	ErrInvalidDataURL = errors.New("invalid data url")
)

// DecodeDataURL splits a base64 data URL into its bytes and media type.
// The media type falls back to image/png when the header names none.
func DecodeDataURL(dataURL string) ([]byte, string, error) {
	if strings.TrimSpace(dataURL) == "" {
		return nil, "", ErrMissingDataURL
	}
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasPrefix(header, "data:") {
		return nil, "", ErrInvalidDataURL
	}

	contentType := DefaultContentType
	meta := strings.TrimPrefix(header, "data:")
	params := strings.Split(meta, ";")
	if params[0] != "" {
		contentType = params[0]
	}
	isBase64 := false
	for _, p := range params[1:] {
		if p == "base64" {
			isBase64 = true
		}
	}
	if !isBase64 {
		return nil, "", fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
		}
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty payload", ErrInvalidDataURL)
	}
	return data, contentType, nil
}
