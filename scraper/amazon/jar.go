package amazon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chromedp/cdproto/network"
)

// Cookie is the serialized form of one browser cookie in the jar file.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"http_only"`
	SameSite string  `json:"same_site,omitempty"`
}

// CookieJar persists one session's cookies to a JSON file so the next
// session can replay them and skip repeat bot-checks. The jar is
// best-effort throughout: a missing file is a normal cold start, and it
// is overwritten wholesale at every session teardown.
type CookieJar struct {
	path string
}

// NewCookieJar creates a jar backed by the file at path.
func NewCookieJar(path string) *CookieJar {
	return &CookieJar{path: path}
}

// Load reads the persisted cookies. A missing file returns (nil, nil).
func (j *CookieJar) Load() ([]Cookie, error) {
	data, err := os.ReadFile(j.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cookie jar: read %q: %w", j.path, err)
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("cookie jar: decode %q: %w", j.path, err)
	}
	return cookies, nil
}

// Save overwrites the jar with the given browser cookies.
func (j *CookieJar) Save(cookies []*network.Cookie) error {
	records := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		records = append(records, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: string(c.SameSite),
		})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("cookie jar: encode: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
		return fmt.Errorf("cookie jar: create dir: %w", err)
	}
	if err := os.WriteFile(j.path, data, 0644); err != nil {
		return fmt.Errorf("cookie jar: write %q: %w", j.path, err)
	}
	return nil
}
