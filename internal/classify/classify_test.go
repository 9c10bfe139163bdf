package classify

import "testing"

func TestClassify(t *testing.T) {
	policy := Policy{
		OwnOrigin: "https://quiz.example.com",
		Allowed:   []string{"https://cdn.example.net"},
	}

	tests := []struct {
		name      string
		req       Request
		intercept bool
		category  Category
	}{
		{
			name:      "relative document",
			req:       Request{URL: "/index.html", Method: "GET", Destination: "document"},
			intercept: true,
			category:  Document,
		},
		{
			name: "non-GET passes through",
			req:  Request{URL: "/api/submit", Method: "POST", Destination: "document"},
		},
		{
			name:      "own origin absolute",
			req:       Request{URL: "https://quiz.example.com/app.js", Method: "GET", Destination: "script"},
			intercept: true,
			category:  Asset,
		},
		{
			name:      "allow-listed cross origin",
			req:       Request{URL: "https://cdn.example.net/lib.css", Method: "GET", Destination: "style"},
			intercept: true,
			category:  Asset,
		},
		{
			name: "unlisted cross origin passes through",
			req:  Request{URL: "https://tracker.example.org/pixel.png", Method: "GET", Destination: "image"},
		},
		{
			name: "allow-list is case sensitive",
			req:  Request{URL: "https://CDN.example.net/lib.css", Method: "GET", Destination: "style"},
		},
		{
			name:      "image destination",
			req:       Request{URL: "/logo.png", Method: "GET", Destination: "image"},
			intercept: true,
			category:  Image,
		},
		{
			name:      "accept header html fallback",
			req:       Request{URL: "/about", Method: "GET", Accept: "text/html,application/xhtml+xml"},
			intercept: true,
			category:  Document,
		},
		{
			name:      "accept header css fallback",
			req:       Request{URL: "/style", Method: "GET", Accept: "text/css,*/*;q=0.1"},
			intercept: true,
			category:  Asset,
		},
		{
			name:      "accept header image fallback",
			req:       Request{URL: "/pic", Method: "GET", Accept: "image/avif,image/webp"},
			intercept: true,
			category:  Image,
		},
		{
			name:      "api call is other",
			req:       Request{URL: "/api/score", Method: "GET", Accept: "application/json"},
			intercept: true,
			category:  Other,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := policy.Classify(tt.req)
			if dec.Intercept != tt.intercept {
				t.Fatalf("intercept: expected %v, got %v", tt.intercept, dec.Intercept)
			}
			if dec.Intercept && dec.Category != tt.category {
				t.Fatalf("category: expected %s, got %s", tt.category, dec.Category)
			}
		})
	}
}
