package media

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// decodeDataURL parses a base64 data URL ("data:image/png;base64,....")
// into its MIME type and raw bytes.
func decodeDataURL(dataURL string) (mimeType string, payload []byte, err error) {
	const prefix = "data:"
	if !strings.HasPrefix(dataURL, prefix) {
		return "", nil, fmt.Errorf("not a data url")
	}

	rest := dataURL[len(prefix):]
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data url")
	}

	mimeType, _, _ = strings.Cut(meta, ";")
	if mimeType == "" {
		mimeType = "text/plain"
	}
	if !strings.Contains(meta, ";base64") {
		return "", nil, fmt.Errorf("only base64 data urls are supported")
	}

	payload, err = base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("decoding data url payload: %w", err)
	}
	return mimeType, payload, nil
}

// extensionFor maps a handful of image MIME types to file extensions.
func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
