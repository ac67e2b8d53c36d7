package assets

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Store persists generated images and returns a URL clients can fetch.
type Store interface {
	Save(ctx context.Context, key, contentType string, data []byte) (string, error)
	// DeletePrefix removes every object whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// PresentationPrefix is the key prefix shared by all images of one presentation.
func PresentationPrefix(presentationID string) string {
	return "presentations/" + presentationID + "/"
}

// ImageKey builds a unique key for the image at position within a presentation.
func ImageKey(presentationID string, position int, contentType string) string {
	return fmt.Sprintf("%s%02d-%s%s", PresentationPrefix(presentationID), position, uuid.NewString(), extensionFor(contentType))
}

func extensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

func cleanKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("asset key required")
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid asset key %q", key)
		}
	}
	return key, nil
}
