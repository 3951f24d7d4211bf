// Package link builds and parses share links of the form
// https://host/view/<id>#<key>. The fragment carries the cipher key to
// the recipient when the secret has no password; viewing only needs the
// server and id, so Parse deliberately discards it.
package link

import (
	"fmt"
	"net/url"
	"strings"
)

// Link is a parsed share link.
type Link struct {
	// BaseURL is the server prefix, e.g. https://sealbox.example.com.
	BaseURL string
	// ID identifies the secret.
	ID string
}

// Build renders the canonical share link.
func Build(baseURL, id, key string) string {
	s := strings.TrimSuffix(baseURL, "/") + "/view/" + id
	if key != "" {
		s += "#" + key
	}
	return s
}

// Parse deconstructs a share link.
func Parse(raw string) (*Link, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid link: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid link: missing scheme or host")
	}

	id, ok := strings.CutPrefix(u.Path, "/view/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return nil, fmt.Errorf("invalid link: path must be /view/<id>")
	}

	return &Link{
		BaseURL: u.Scheme + "://" + u.Host,
		ID:      id,
	}, nil
}
