// Package classify decides, for one observed outbound request, whether the
// agent intercepts it at all and which retrieval category applies. It is a
// pure function over the request descriptor; it touches no cache state.
package classify

import (
	"net/url"
	"strings"
)

// Category is the retrieval category of a request. The strategy engine
// switches exhaustively over it; adding a category is a compile-time change.
type Category int

const (
	Document Category = iota // top-level navigations / HTML
	Asset                    // scripts and stylesheets
	Image
	Other // API-like calls and everything else
)

func (c Category) String() string {
	switch c {
	case Document:
		return "document"
	case Asset:
		return "asset"
	case Image:
		return "image"
	case Other:
		return "other"
	}
	return "unknown"
}

// Request is the immutable descriptor the interception boundary observes.
type Request struct {
	URL         string
	Method      string
	Destination string // host-provided destination hint ("document", "script", ...)
	Accept      string
}

// Decision is the classifier output. Intercept=false means the request
// passes through unmodified: no caching, no rewriting.
type Decision struct {
	Intercept bool
	Trusted   bool
	Category  Category
}

// Policy holds the trust configuration. Own-origin requests are always
// trusted; cross-origin requests are trusted only on an exact, case-sensitive
// match against Allowed.
type Policy struct {
	OwnOrigin string
	Allowed   []string
}

func (p Policy) Classify(req Request) Decision {
	if req.Method != "GET" {
		return Decision{}
	}
	trusted := p.trustedOrigin(req.URL)
	if !trusted {
		return Decision{}
	}
	return Decision{Intercept: true, Trusted: true, Category: categoryOf(req)}
}

func (p Policy) trustedOrigin(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Host == "" {
		// Relative URL, necessarily same-origin.
		return true
	}
	origin := u.Scheme + "://" + u.Host
	if origin == p.OwnOrigin {
		return true
	}
	for _, allowed := range p.Allowed {
		if origin == allowed {
			return true
		}
	}
	return false
}

func categoryOf(req Request) Category {
	switch req.Destination {
	case "document":
		return Document
	case "script", "style":
		return Asset
	case "image":
		return Image
	}
	// No destination hint: sniff the Accept header.
	switch {
	case strings.Contains(req.Accept, "text/html"):
		return Document
	case strings.Contains(req.Accept, "text/css"):
		return Asset
	case strings.HasPrefix(req.Accept, "image/"):
		return Image
	}
	return Other
}
