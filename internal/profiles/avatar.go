package profiles

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	avatarPrefix      = "profile-photos"
	maxFilenameLength = 80
)

var (
	allowedAvatarTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}
	unsafeFilenameRe   = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// detectAvatarType sniffs the content and returns the canonical MIME type when it is an allowed image.
func detectAvatarType(data []byte) (string, bool) {
	detected := mimetype.Detect(data)
	for _, allowed := range allowedAvatarTypes {
		if detected.Is(allowed) {
			return allowed, true
		}
	}
	return detected.String(), false
}

func sanitizeFilename(name, contentType string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	base = unsafeFilenameRe.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if len(base) > maxFilenameLength {
		base = base[len(base)-maxFilenameLength:]
	}
	if base == "" {
		base = "avatar"
		if m := mimetype.Lookup(contentType); m != nil {
			base += m.Extension()
		}
	}
	return base
}

func avatarObjectPath(ownerID uuid.UUID, at time.Time, filename string) string {
	return fmt.Sprintf("%s/%s/%d_%s", avatarPrefix, ownerID, at.UnixMilli(), filename)
}
