// Package githubapi provides a GitHub REST client powered by go-github.
package githubapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/go-github/v68/github"
)

// APIVersion is the REST API version sent with every request.
const APIVersion = "2022-11-28"

const defaultTimeout = 20 * time.Second

// Options configures NewClient.
type Options struct {
	// Token is a personal access token or app token. Empty means unauthenticated
	// access, which GitHub rate-limits to 60 requests per hour.
	Token string
	// BaseURL overrides https://api.github.com/ (GitHub Enterprise, test fixtures).
	BaseURL string
	// HTTPClient overrides the default client with a 20s timeout.
	HTTPClient *http.Client
}

// NewClient creates a GitHub API client.
func NewClient(opts Options) (*github.Client, error) {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}

	c := github.NewClient(hc)
	if opts.Token != "" {
		c = c.WithAuthToken(opts.Token)
	}

	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, errors.Wrap(err, "parse github base url")
		}
		c.BaseURL = u
	}

	return c, nil
}
