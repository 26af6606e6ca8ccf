package mosaic

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"video-mosaic/internal/frames"
)

// ContentHash identifies a video by path, natural size, codec and creation
// date, concatenated without separators. It does not read file contents, so
// renaming a file changes its hash.
func ContentHash(path string, meta frames.Metadata) string {
	created := ""
	if meta.CreationDate != nil {
		created = meta.CreationDate.UTC().Format(time.RFC3339)
	}
	sum := sha256.Sum256([]byte(path + meta.Resolution() + meta.Codec + created))
	return hex.EncodeToString(sum[:])
}
