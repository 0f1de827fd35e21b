// Package robots parses robots.txt and evaluates per-agent allow and
// disallow rules with longest-prefix matching.
package robots

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/docs-mirror/internal/crawler"
)

// Policy is the immutable evaluation result for one origin and one
// user agent.
type Policy struct {
	allows     []string
	disallows  []string
	crawlDelay time.Duration
	hasDelay   bool

	// Source notes where the policy came from ("robots.txt", "robots
	// fetch failed; allow all", "robots disabled").
	Source string
}

// AllowAll is the policy applied when robots handling is disabled or the
// file cannot be fetched.
func AllowAll(source string) *Policy {
	return &Policy{Source: source}
}

// IsAllowed evaluates the path against the agent's rules: the longest
// matching Allow prefix competes with the longest matching Disallow
// prefix, and ties go to Allow.
func (p *Policy) IsAllowed(path string) bool {
	if p == nil {
		return true
	}
	if path == "" {
		path = "/"
	}
	allow := longestPrefix(p.allows, path)
	disallow := longestPrefix(p.disallows, path)
	if allow == 0 && disallow == 0 {
		return true
	}
	return allow >= disallow
}

// CrawlDelay returns the agent's crawl delay, if one was declared.
func (p *Policy) CrawlDelay() (time.Duration, bool) {
	if p == nil {
		return 0, false
	}
	return p.crawlDelay, p.hasDelay
}

func longestPrefix(rules []string, path string) int {
	best := 0
	for _, rule := range rules {
		if len(rule) > best && strings.HasPrefix(path, rule) {
			best = len(rule)
		}
	}
	return best
}

// agentGroup accumulates the rules declared under one User-agent line.
type agentGroup struct {
	agent     string
	allows    []string
	disallows []string
	delay     time.Duration
	hasDelay  bool
}

// Parse builds the Policy for userAgent from robots.txt text. Unknown
// directives are ignored; a noisy file never fails.
func Parse(text, userAgent string) *Policy {
	groups := parseGroups(text)
	group := selectGroup(groups, userAgent)
	if group == nil {
		return AllowAll("robots.txt (no matching agent)")
	}
	return &Policy{
		allows:     group.allows,
		disallows:  group.disallows,
		crawlDelay: group.delay,
		hasDelay:   group.hasDelay,
		Source:     "robots.txt",
	}
}

func parseGroups(text string) []*agentGroup {
	var groups []*agentGroup
	var current *agentGroup
	for _, line := range strings.Split(text, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "user-agent":
			current = &agentGroup{agent: strings.ToLower(value)}
			groups = append(groups, current)
		case "allow":
			if current == nil {
				current = wildcardGroup(&groups)
			}
			if rule := normalizeRule(value); rule != "" {
				current.allows = append(current.allows, rule)
			}
		case "disallow":
			if current == nil {
				current = wildcardGroup(&groups)
			}
			if rule := normalizeRule(value); rule != "" {
				current.disallows = append(current.disallows, rule)
			}
		case "crawl-delay":
			if current == nil {
				current = wildcardGroup(&groups)
			}
			if seconds, err := strconv.ParseFloat(value, 64); err == nil && seconds >= 0 {
				// Fractional seconds round half-up to milliseconds.
				current.delay = time.Duration(math.Floor(seconds*1000+0.5)) * time.Millisecond
				current.hasDelay = true
			}
		}
	}
	return groups
}

// wildcardGroup applies rules that appear before any User-agent line to
// the `*` agent.
func wildcardGroup(groups *[]*agentGroup) *agentGroup {
	g := &agentGroup{agent: "*"}
	*groups = append(*groups, g)
	return g
}

// selectGroup picks the group for ua: exact lowercase match first, then
// any non-wildcard agent token contained in the UA string, then `*`.
func selectGroup(groups []*agentGroup, ua string) *agentGroup {
	lower := strings.ToLower(ua)
	for _, g := range groups {
		if g.agent == lower {
			return g
		}
	}
	for _, g := range groups {
		if g.agent != "*" && g.agent != "" && strings.Contains(lower, g.agent) {
			return g
		}
	}
	for _, g := range groups {
		if g.agent == "*" {
			return g
		}
	}
	return nil
}

func normalizeRule(value string) string {
	if value == "" {
		return ""
	}
	if !strings.HasPrefix(value, "/") {
		value = "/" + value
	}
	return value
}

// Fetch loads and parses robots.txt for origin using the shared HTTP
// client. Any fetch failure or non-2xx status degrades to allow-all with
// a note, matching crawler expectations that robots problems never stop a
// run.
func Fetch(ctx context.Context, client crawler.HTTPClient, origin, userAgent string, logger *zap.Logger) *Policy {
	resp, err := client.Fetch(ctx, origin+"/robots.txt", nil)
	if err != nil {
		logger.Warn("robots fetch failed; allowing all",
			zap.String("origin", origin), zap.Error(err))
		return AllowAll("robots fetch failed; allow all")
	}
	if !resp.OK() {
		return AllowAll("robots fetch failed; allow all")
	}
	return Parse(resp.Body, userAgent)
}
