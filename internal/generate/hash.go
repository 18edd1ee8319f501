package generate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	gocache "github.com/patrickmn/go-cache"

	"storyboard/internal/sdl"
)

// fileHashes memoizes content hashes of reference images keyed by path,
// size, and mtime. The same reference photo commonly appears in many frames
// of a run.
var fileHashes = gocache.New(gocache.NoExpiration, gocache.NoExpiration)

// ImageCacheHash computes the content hash for an image asset from the
// rendered template parts and the model identifier. Part order is
// significant; prompt text contributes verbatim and image parts contribute
// the hash of their file bytes.
func ImageCacheHash(parts []sdl.TemplatePart, model string) string {
	components := []string{model}

	for _, part := range parts {
		switch {
		case part.Type == sdl.PartPrompt && part.Content != "":
			components = append(components, part.Content)
		case part.Type == sdl.PartImage && part.Content != "":
			fileHash, err := FileHash(part.Content)
			if err != nil {
				continue
			}
			components = append(components, fileHash)
		}
	}

	return truncatedSHA256(strings.Join(components, ""))
}

// TTSCacheHash computes the content hash for a speech asset.
func TTSCacheHash(vendor, model, voiceID, prompt string) string {
	return truncatedSHA256(vendor + model + voiceID + prompt)
}

// FileHash returns the full sha256 hex digest of a file's contents.
func FileHash(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if cached, ok := fileHashes.Get(key); ok {
		return cached.(string), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	fileHashes.Set(key, digest, gocache.NoExpiration)
	return digest, nil
}

func truncatedSHA256(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}
