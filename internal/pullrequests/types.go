// Package pullrequests queries merged pull requests from GitHub and
// normalizes them into request-scoped records.
package pullrequests

import (
	"math"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Repository defaults used when a report request leaves them empty.
const (
	DefaultOwner       = "aws"
	DefaultRepo        = "aws-cdk"
	DefaultWindowHours = 24

	// MaxWindowHours is the widest window whose start still fits in a
	// time.Duration.
	MaxWindowHours = int(math.MaxInt64 / int64(time.Hour))

	// searchPageSize caps the result set; later pages are never fetched.
	searchPageSize = 100
	filesPageSize  = 100
)

// Summary is a normalized search hit for a merged pull request.
type Summary struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	Author    string     `json:"author"`
	MergedAt  *time.Time `json:"mergedAt"`
	UpdatedAt *time.Time `json:"updatedAt"`
	Labels    []string   `json:"labels"`
	Body      string     `json:"body"`
}

// File is one changed file of a pull request.
type File struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
}

// Detail is a Summary plus state, diff stats and the changed-file list.
type Detail struct {
	Summary
	State        string `json:"state"`
	Merged       bool   `json:"merged"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	ChangedFiles int    `json:"changedFiles"`
	Files        []File `json:"files"`
}

// ReportRequest selects the pull requests a report covers. AsOfDate and
// WindowHours are mutually exclusive: a set AsOfDate selects that calendar
// date, otherwise the rolling window of WindowHours ending now is used.
type ReportRequest struct {
	Owner       string     `json:"owner"`
	Repo        string     `json:"repo"`
	WindowHours int        `json:"windowHours"`
	AsOfDate    *time.Time `json:"asOfDate,omitempty"`
}

// WithDefaults fills empty fields with aws/aws-cdk and a 24 hour window.
func (r ReportRequest) WithDefaults() ReportRequest {
	if strings.TrimSpace(r.Owner) == "" {
		r.Owner = DefaultOwner
	}
	if strings.TrimSpace(r.Repo) == "" {
		r.Repo = DefaultRepo
	}
	if r.WindowHours == 0 && r.AsOfDate == nil {
		r.WindowHours = DefaultWindowHours
	}
	return r
}

// Validate checks the request after defaults were applied.
func (r ReportRequest) Validate() error {
	if err := checkRepo(r.Owner, r.Repo); err != nil {
		return err
	}
	if r.AsOfDate != nil {
		if r.WindowHours != 0 {
			return errors.New("windowHours and asOfDate are mutually exclusive")
		}
		return nil
	}
	return checkWindow(r.WindowHours)
}

func checkWindow(hours int) error {
	if hours <= 0 {
		return errors.Errorf("windowHours must be positive, got %d", hours)
	}
	if hours > MaxWindowHours {
		return errors.Errorf("windowHours must be at most %d, got %d", MaxWindowHours, hours)
	}
	return nil
}

func checkRepo(owner, repo string) error {
	if strings.TrimSpace(owner) == "" {
		return errors.New("owner must not be empty")
	}
	if strings.TrimSpace(repo) == "" {
		return errors.New("repo must not be empty")
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD calendar date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}
