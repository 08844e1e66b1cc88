package crawl

import (
	"context"
	"net/http"
	"net/url"

	"github.com/temoto/robotstxt"
)

// Robots holds the robots.txt rules that apply to the fetcher's user agent.
// A nil *Robots allows everything.
type Robots struct {
	group *robotstxt.Group
}

// Allowed reports whether rawURL may be fetched.
func (r *Robots) Allowed(rawURL string) bool {
	if r == nil || r.group == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return r.group.Test(path)
}

// LoadRobots fetches /robots.txt for the host of seed. Any failure yields
// nil, which allows every path.
func (f *Fetcher) LoadRobots(ctx context.Context, seed string) *Robots {
	u, err := url.Parse(seed)
	if err != nil || u.Host == "" {
		return nil
	}
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug("robots.txt unavailable, ignoring", "url", robotsURL, "err", err)
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		f.logger.Warn("error parsing robots.txt", "url", robotsURL, "err", err)
		return nil
	}
	return &Robots{group: data.FindGroup(f.userAgent)}
}
