package retrieval

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"smartfile-qa/internal/pkg/safename"
)

type Tier string

const (
	TierCatalog Tier = "catalog"
	TierCache   Tier = "cache"
)

// TierOutcome is what one lookup tier produced for a request.
type TierOutcome struct {
	Tier    Tier
	Hit     bool
	Skipped bool
	Err     error
}

// Delivery is a resolved file plus how it should be sent.
type Delivery struct {
	Data     []byte
	Filename string
	MimeType string
	Preview  bool
	Source   Tier
	Outcomes []TierOutcome
}

func (d *Delivery) IsVideo() bool {
	return strings.HasPrefix(d.MimeType, "video/")
}

// Headers returns the response headers for the delivery mode.
func (d *Delivery) Headers() http.Header {
	h := make(http.Header)
	mimeType := d.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h.Set("Content-Type", mimeType)
	h.Set("Content-Length", strconv.Itoa(len(d.Data)))
	h.Set("X-Content-Type-Options", "nosniff")

	if d.Preview {
		h.Set("Content-Disposition", contentDisposition("inline", d.Filename))
		if d.IsVideo() {
			h.Set("Accept-Ranges", "bytes")
			h.Set("Cache-Control", "public, max-age=3600")
		}
		if mimeType == "application/pdf" {
			h.Set("X-Frame-Options", "SAMEORIGIN")
		}
		return h
	}

	h.Set("Content-Disposition", contentDisposition("attachment", d.Filename))
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	return h
}

func contentDisposition(disposition, filename string) string {
	if filename == "" {
		return disposition
	}
	if isPlainASCII(filename) {
		return fmt.Sprintf(`%s; filename="%s"`, disposition, filename)
	}
	return fmt.Sprintf(`%s; filename="%s"; filename*=UTF-8''%s`,
		disposition, safename.Sanitize(filename), url.PathEscape(filename))
}

func isPlainASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || r < 0x20 || r == '"' || r == '\\' || r == 0x7f {
			return false
		}
	}
	return true
}
