// server/internal/models/photo.go
package models

import (
	"encoding/hex"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/crypto/blake2b"
)

// MediaType returns the photo's content type and a matching file extension.
// A declared content type wins over sniffing when it is a known, specific type.
func (p Photo) MediaType() (contentType, ext string) {
	if p.ContentType != "" && p.ContentType != "application/octet-stream" {
		if known := mimetype.Lookup(p.ContentType); known != nil {
			return known.String(), extOrDefault(known.Extension())
		}
	}
	detected := mimetype.Detect(p.Data)
	return detected.String(), extOrDefault(detected.Extension())
}

// Hash is the hex blake2b-256 digest of the photo bytes.
func (p Photo) Hash() string {
	sum := blake2b.Sum256(p.Data)
	return hex.EncodeToString(sum[:])
}

func extOrDefault(ext string) string {
	if ext == "" {
		return ".jpg"
	}
	return ext
}
