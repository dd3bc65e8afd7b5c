package pullrequests

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/go-github/v68/github"
)

// Adapter runs pull request queries against the GitHub REST API. Calls are
// synchronous and never fan out; failures come back inside QueryResult.
type Adapter struct {
	gh  *github.Client
	now func() time.Time
	loc *time.Location
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// WithLocation sets the zone calendar dates are interpreted in (default UTC).
func WithLocation(loc *time.Location) Option {
	return func(a *Adapter) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// NewAdapter creates an Adapter on top of a go-github client.
func NewAdapter(gh *github.Client, opts ...Option) *Adapter {
	a := &Adapter{gh: gh, now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Location returns the zone used for calendar dates.
func (a *Adapter) Location() *time.Location {
	return a.loc
}

// Fetch dispatches a report request to the matching selection mode.
func (a *Adapter) Fetch(ctx context.Context, req ReportRequest) QueryResult[[]Summary] {
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return Fail[[]Summary](KindInvalidArgument, err)
	}
	if req.AsOfDate != nil {
		return a.FetchMergedOn(ctx, req.Owner, req.Repo, *req.AsOfDate)
	}
	return a.FetchRecentMerged(ctx, req.Owner, req.Repo, req.WindowHours)
}

// FetchRecentMerged returns pull requests of owner/repo merged within the
// last windowHours, most recently updated first. At most 100 are returned.
func (a *Adapter) FetchRecentMerged(ctx context.Context, owner, repo string, windowHours int) QueryResult[[]Summary] {
	if err := checkRepo(owner, repo); err != nil {
		return Fail[[]Summary](KindInvalidArgument, err)
	}
	if err := checkWindow(windowHours); err != nil {
		return Fail[[]Summary](KindInvalidArgument, err)
	}

	now := a.now().UTC().Truncate(time.Second)
	since := now.Add(-time.Duration(windowHours) * time.Hour)
	query := fmt.Sprintf("repo:%s/%s is:pr is:merged merged:>=%s", owner, repo, formatTimestamp(since))

	return a.search(ctx, owner, repo, query, window{
		since: since,
		label: fmt.Sprintf("last %d hours (since %s)", windowHours, formatTimestamp(since)),
	})
}

// FetchMergedOn returns pull requests of owner/repo merged on the calendar
// date of day, interpreted in the adapter's location.
func (a *Adapter) FetchMergedOn(ctx context.Context, owner, repo string, day time.Time) QueryResult[[]Summary] {
	if err := checkRepo(owner, repo); err != nil {
		return Fail[[]Summary](KindInvalidArgument, err)
	}
	if day.IsZero() {
		return Fail[[]Summary](KindInvalidArgument, errors.New("date must be set"))
	}

	y, m, d := day.In(a.loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, a.loc)
	end := start.AddDate(0, 0, 1)
	query := fmt.Sprintf("repo:%s/%s is:pr is:merged merged:%s..%s",
		owner, repo, formatTimestamp(start), formatTimestamp(end.Add(-time.Second)))

	return a.search(ctx, owner, repo, query, window{
		since: start.UTC(),
		until: end.UTC(),
		label: fmt.Sprintf("merged on %s (%s)", start.Format(time.DateOnly), a.loc.String()),
	})
}

// FetchDetail returns one pull request with its changed files. Metadata and
// the file list are fetched one after the other; if either fails the whole
// result fails.
func (a *Adapter) FetchDetail(ctx context.Context, owner, repo string, number int) QueryResult[Detail] {
	if err := checkRepo(owner, repo); err != nil {
		return Fail[Detail](KindInvalidArgument, err)
	}
	if number <= 0 {
		return Fail[Detail](KindInvalidArgument, errors.Errorf("pullNumber must be positive, got %d", number))
	}

	pr, _, err := a.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return failFromAPI[Detail](err)
	}

	files, _, err := a.gh.PullRequests.ListFiles(ctx, owner, repo, number, &github.ListOptions{PerPage: filesPageSize})
	if err != nil {
		return failFromAPI[Detail](err)
	}

	return Succeed(toDetail(pr, files), &Meta{Count: len(files)})
}

type window struct {
	since time.Time
	until time.Time // zero means open-ended
	label string
}

func (w window) contains(t *time.Time) bool {
	if t == nil || t.Before(w.since) {
		return false
	}
	return w.until.IsZero() || t.Before(w.until)
}

func (a *Adapter) search(ctx context.Context, owner, repo, query string, w window) QueryResult[[]Summary] {
	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", "updated")
	params.Set("order", "desc")
	params.Set("per_page", strconv.Itoa(searchPageSize))

	req, err := a.gh.NewRequest(http.MethodGet, "search/issues?"+params.Encode(), nil)
	if err != nil {
		return Fail[[]Summary](KindTransport, errors.Wrap(err, "build search request"))
	}

	var res searchResponse
	if _, err := a.gh.Do(ctx, req, &res); err != nil {
		return failFromAPI[[]Summary](err)
	}

	prs := make([]Summary, 0, len(res.Items))
	for _, item := range res.Items {
		if !item.belongsTo(owner, repo) {
			continue
		}
		s := item.summary()
		if !w.contains(s.MergedAt) {
			continue
		}
		prs = append(prs, s)
	}
	sortByUpdated(prs)

	meta := &Meta{
		Query:             query,
		Count:             len(prs),
		TotalCount:        res.TotalCount,
		IncompleteResults: res.IncompleteResults,
		TimeRange:         w.label,
	}
	since := w.since
	meta.Since = &since
	if !w.until.IsZero() {
		until := w.until
		meta.Until = &until
	}
	return Succeed(prs, meta)
}

// sortByUpdated orders most recently updated first; undated entries go last.
func sortByUpdated(prs []Summary) {
	slices.SortStableFunc(prs, func(a, b Summary) int {
		switch {
		case a.UpdatedAt == nil && b.UpdatedAt == nil:
			return 0
		case a.UpdatedAt == nil:
			return 1
		case b.UpdatedAt == nil:
			return -1
		}
		return b.UpdatedAt.Compare(*a.UpdatedAt)
	})
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

type searchResponse struct {
	TotalCount        int          `json:"total_count"`
	IncompleteResults bool         `json:"incomplete_results"`
	Items             []searchItem `json:"items"`
}

type searchItem struct {
	Number        int        `json:"number"`
	Title         string     `json:"title"`
	HTMLURL       string     `json:"html_url"`
	RepositoryURL string     `json:"repository_url"`
	User          *struct {
		Login string `json:"login"`
	} `json:"user"`
	Labels      Labels     `json:"labels"`
	Body        *string    `json:"body"`
	ClosedAt    *time.Time `json:"closed_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
	PullRequest *struct {
		MergedAt *time.Time `json:"merged_at"`
	} `json:"pull_request"`
}

// belongsTo matches repository_url against owner/repo. Items without a
// repository_url are trusted to the repo: qualifier of the query.
func (it searchItem) belongsTo(owner, repo string) bool {
	if it.RepositoryURL == "" {
		return true
	}
	suffix := "/repos/" + strings.ToLower(owner) + "/" + strings.ToLower(repo)
	return strings.HasSuffix(strings.ToLower(strings.TrimSuffix(it.RepositoryURL, "/")), suffix)
}

func (it searchItem) summary() Summary {
	s := Summary{
		Number:    it.Number,
		Title:     it.Title,
		URL:       it.HTMLURL,
		Author:    "unknown",
		UpdatedAt: it.UpdatedAt,
		Labels:    []string(it.Labels),
	}
	if it.User != nil && it.User.Login != "" {
		s.Author = it.User.Login
	}
	if it.Body != nil {
		s.Body = *it.Body
	}
	if s.Labels == nil {
		s.Labels = []string{}
	}
	switch {
	case it.PullRequest != nil && it.PullRequest.MergedAt != nil:
		s.MergedAt = it.PullRequest.MergedAt
	case it.ClosedAt != nil:
		s.MergedAt = it.ClosedAt
	}
	return s
}

func toDetail(pr *github.PullRequest, files []*github.CommitFile) Detail {
	d := Detail{
		Summary: Summary{
			Number: pr.GetNumber(),
			Title:  pr.GetTitle(),
			URL:    pr.GetHTMLURL(),
			Author: "unknown",
			Body:   pr.GetBody(),
			Labels: make([]string, 0, len(pr.Labels)),
		},
		State:        pr.GetState(),
		Merged:       pr.GetMerged(),
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
		ChangedFiles: pr.GetChangedFiles(),
		Files:        make([]File, 0, len(files)),
	}
	if login := pr.GetUser().GetLogin(); login != "" {
		d.Author = login
	}
	if pr.MergedAt != nil {
		t := pr.MergedAt.Time
		d.MergedAt = &t
	}
	if pr.UpdatedAt != nil {
		t := pr.UpdatedAt.Time
		d.UpdatedAt = &t
	}
	for _, l := range pr.Labels {
		if name := l.GetName(); name != "" {
			d.Labels = append(d.Labels, name)
		}
	}
	for _, f := range files {
		d.Files = append(d.Files, File{
			Filename:  f.GetFilename(),
			Status:    f.GetStatus(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			Changes:   f.GetChanges(),
		})
	}
	return d
}
