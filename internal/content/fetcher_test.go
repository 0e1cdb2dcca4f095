package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/uvp-engine/internal/model"
)

const landingHTML = `<!DOCTYPE html>
<html>
<head>
	<title>Harbor Dental | Gentle dentistry in Portland</title>
	<meta name="keywords" content="dentist, sedation dentistry, portland">
	<meta name="description" content="Calm, pain-free dental care for anxious patients.">
</head>
<body>
	<nav><a href="/about">About</a><a href="/services">Services</a><a href="/blog">Blog</a></nav>
	<main>
		<h1>Dentistry without the dread</h1>
		<p>Harbor Dental gives anxious patients calm, pain-free visits with sedation options for every level of anxiety.</p>
	</main>
	<script>console.log("tracking")</script>
	<footer>© Harbor Dental</footer>
</body>
</html>`

const aboutHTML = `<html><head><title>About</title></head><body>
<p>Founded by Dr. Reyes in 2012, Harbor Dental has helped thousands of anxious patients finally feel comfortable in the chair.</p>
</body></html>`

func newTestFetcher() *Fetcher {
	return NewFetcher(Config{MaxPages: 3})
}

func TestFetch_CleanSite(t *testing.T) {
	var aboutHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(landingHTML))
		case "/about", "/services":
			aboutHits++
			_, _ = w.Write([]byte(aboutHTML))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	site, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Harbor Dental", site.BusinessName, "title before the separator")
	assert.Equal(t, "dentist", site.IndustryHint, "first meta keyword")

	require.GreaterOrEqual(t, len(site.Pages), 2)
	assert.Contains(t, site.Pages[0], "pain-free visits")
	assert.NotContains(t, site.Pages[0], "tracking", "script content is stripped")
	assert.NotContains(t, site.Pages[0], "©", "footer chrome is stripped")
	assert.Equal(t, 2, aboutHits, "about and services links are followed, blog is not")
}

func TestFetch_OGSiteNameWins(t *testing.T) {
	html := `<html><head>
	<meta property="og:site_name" content="Harbor Dental Clinic">
	<title>Home | Harbor Dental</title>
	</head><body><p>` + longFiller + `</p></body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(html))
	}))
	defer srv.Close()

	site, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Harbor Dental Clinic", site.BusinessName)
}

const longFiller = "We provide gentle, anxiety-aware dental care with sedation options, evening hours, and transparent pricing for every patient."

func TestFetch_CloudflareBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cf-Ray", "8a1b2c3d4e5f")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("<html><body>Checking your browser before accessing</body></html>"))
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrContentUnavailable)
}

func TestFetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrContentUnavailable)
}

func TestFetch_EmptySite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>Hi.</p></body></html>"))
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err, "a page with no substantive text is unusable")
	assert.ErrorIs(t, err, model.ErrContentUnavailable)
}

func TestFetch_SecondaryPageFailureIsNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			_, _ = w.Write([]byte(landingHTML))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	site, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err, "broken secondary pages must not fail the fetch")
	assert.Len(t, site.Pages, 1)
}

func TestFetch_InvalidURL(t *testing.T) {
	_, err := newTestFetcher().Fetch(context.Background(), "   ")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrContentUnavailable)
}

func TestNormalizeURL(t *testing.T) {
	u, err := normalizeURL("example.com/about")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/about", u.String())

	u, err = normalizeURL("http://example.com")
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)

	_, err = normalizeURL("")
	assert.Error(t, err)
}

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name    string
		resp    *http.Response
		body    string
		blocked bool
		kind    BlockType
	}{
		{
			name:    "cloudflare header",
			resp:    &http.Response{StatusCode: 403, Header: http.Header{"Cf-Ray": []string{"abc"}}},
			body:    "Checking your browser",
			blocked: true,
			kind:    BlockCloudflare,
		},
		{
			name:    "captcha body",
			resp:    &http.Response{StatusCode: 200, Header: http.Header{}},
			body:    `<form action="/recaptcha">please verify you are human</form>`,
			blocked: true,
			kind:    BlockCaptcha,
		},
		{
			name:    "clean page",
			resp:    &http.Response{StatusCode: 200, Header: http.Header{}},
			body:    "<html><body>Welcome to our practice.</body></html>",
			blocked: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocked, kind := DetectBlock(tt.resp, []byte(tt.body))
			assert.Equal(t, tt.blocked, blocked)
			if tt.blocked {
				assert.Equal(t, tt.kind, kind)
			}
		})
	}
}
