package instagram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igavatar/pkg/config"
	apperrors "igavatar/pkg/errors"
	"igavatar/pkg/logger"
)

const (
	apiPattern       = `=~^https://i\.instagram\.com/api/v1/users/web_profile_info/`
	pagePattern      = `=~^https://www\.instagram\.com/jane/`
	proxyAPIPattern  = `=~^https://r\.jina\.ai/http://i\.instagram\.com/`
	proxyPagePattern = `=~^https://r\.jina\.ai/http://www\.instagram\.com/`
)

// Helper function to create a client against the default upstream hosts
func newTestClient(t *testing.T) (*Client, *logger.TestLogger) {
	t.Helper()
	cfg := config.DefaultConfig().Upstream
	log := logger.NewTestLogger()
	return NewClient(&cfg, log), log
}

// setupHTTPMock routes the default transport through httpmock for the test
func setupHTTPMock(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

func registerString(pattern string, status int, body string) {
	httpmock.RegisterResponder(http.MethodGet, pattern, httpmock.NewStringResponder(status, body))
}

func TestFetchProfilePictureFromAPI(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "hd picture preferred",
			body: `{"data":{"user":{"username":"jane","profile_pic_url":"https://cdn/std.jpg","profile_pic_url_hd":"https://cdn/hd.jpg"}},"status":"ok"}`,
			want: "https://cdn/hd.jpg",
		},
		{
			name: "standard picture fallback",
			body: `{"data":{"user":{"username":"jane","profile_pic_url":"https://cdn/std.jpg"}}}`,
			want: "https://cdn/std.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupHTTPMock(t)
			registerString(apiPattern, http.StatusOK, tt.body)

			client, _ := newTestClient(t)
			got, err := client.FetchProfilePicture(context.Background(), "jane")

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, httpmock.GetTotalCallCount())
		})
	}
}

func TestAPIRequestHeaders(t *testing.T) {
	setupHTTPMock(t)

	var got http.Header
	httpmock.RegisterResponder(http.MethodGet, apiPattern, func(req *http.Request) (*http.Response, error) {
		got = req.Header.Clone()
		assert.Equal(t, "jane", req.URL.Query().Get("username"))
		return httpmock.NewStringResponse(http.StatusOK, `{"data":{"user":{"profile_pic_url":"https://cdn/a.jpg"}}}`), nil
	})

	client, _ := newTestClient(t)
	_, err := client.FetchProfilePicture(context.Background(), "jane")
	require.NoError(t, err)

	assert.Equal(t, AppID, got.Get("x-ig-app-id"))
	assert.Contains(t, got.Get("User-Agent"), "Chrome/")
	assert.Contains(t, got.Get("Accept"), "application/json")
}

func TestNotFoundShortCircuits(t *testing.T) {
	tests := []struct {
		name      string
		setup     func()
		wantCalls int
	}{
		{
			name: "api 404",
			setup: func() {
				registerString(apiPattern, http.StatusNotFound, "")
			},
			wantCalls: 1,
		},
		{
			name: "api 200 without user",
			setup: func() {
				registerString(apiPattern, http.StatusOK, `{"data":{"user":null},"status":"ok"}`)
			},
			wantCalls: 1,
		},
		{
			name: "profile page 404",
			setup: func() {
				registerString(apiPattern, http.StatusInternalServerError, "")
				registerString(pagePattern, http.StatusNotFound, "")
			},
			wantCalls: 2,
		},
		{
			name: "read proxy api 404",
			setup: func() {
				registerString(apiPattern, http.StatusTooManyRequests, "")
				registerString(pagePattern, http.StatusForbidden, "")
				registerString(proxyAPIPattern, http.StatusNotFound, "")
			},
			wantCalls: 3,
		},
		{
			name: "read proxy page 404",
			setup: func() {
				registerString(apiPattern, http.StatusTooManyRequests, "")
				registerString(pagePattern, http.StatusForbidden, "")
				registerString(proxyAPIPattern, http.StatusBadGateway, "")
				registerString(proxyPagePattern, http.StatusNotFound, "")
			},
			wantCalls: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupHTTPMock(t)
			tt.setup()

			client, _ := newTestClient(t)
			url, err := client.FetchProfilePicture(context.Background(), "jane")

			require.Error(t, err)
			assert.Empty(t, url)
			assert.True(t, apperrors.IsNotFound(err))
			assert.Equal(t, MsgUserNotFound, err.Error())
			assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
			assert.Equal(t, tt.wantCalls, httpmock.GetTotalCallCount())
		})
	}
}

func TestFallsThroughToProfilePage(t *testing.T) {
	tests := []struct {
		name      string
		page      string
		want      string
		wantField string
	}{
		{
			name:      "og image",
			page:      `<html><head><meta property="og:image" content="https://cdn/og.jpg"><meta name="twitter:image" content="https://cdn/tw.jpg"></head></html>`,
			want:      "https://cdn/og.jpg",
			wantField: "og:image",
		},
		{
			name:      "twitter image",
			page:      `<html><head><meta name="twitter:image" content="https://cdn/tw.jpg"></head></html>`,
			want:      "https://cdn/tw.jpg",
			wantField: "twitter:image",
		},
		{
			name:      "script payload with escapes",
			page:      `<html><body><script>window._data = {"profile_pic_url":"https:\/\/cdn\/std.jpg","profile_pic_url_hd":"https:\/\/cdn\/hd.jpg?a=1&b=2"};</script></body></html>`,
			want:      "https://cdn/hd.jpg?a=1&b=2",
			wantField: "profile_pic_url_hd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupHTTPMock(t)
			registerString(apiPattern, http.StatusInternalServerError, "")
			registerString(pagePattern, http.StatusOK, tt.page)

			client, _ := newTestClient(t)
			got, attempts, err := client.Trace(context.Background(), "jane")

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			require.Len(t, attempts, 2)
			assert.Equal(t, StrategyProfileInfo, attempts[0].Strategy)
			assert.Equal(t, OutcomeSoftFail, attempts[0].Outcome)
			assert.Equal(t, http.StatusInternalServerError, attempts[0].Status)
			assert.Equal(t, StrategyHTMLScrape, attempts[1].Strategy)
			assert.Equal(t, OutcomeSuccess, attempts[1].Outcome)
			assert.Equal(t, tt.wantField, attempts[1].Field)
		})
	}
}

func TestProfilePageRequestHeaders(t *testing.T) {
	setupHTTPMock(t)
	registerString(apiPattern, http.StatusInternalServerError, "")

	var got http.Header
	httpmock.RegisterResponder(http.MethodGet, pagePattern, func(req *http.Request) (*http.Response, error) {
		got = req.Header.Clone()
		return httpmock.NewStringResponse(http.StatusOK, `<meta property="og:image" content="https://cdn/og.jpg">`), nil
	})

	client, _ := newTestClient(t)
	_, err := client.FetchProfilePicture(context.Background(), "jane")
	require.NoError(t, err)

	assert.Contains(t, got.Get("User-Agent"), "Googlebot")
	assert.Equal(t, "https://www.google.com/", got.Get("Referer"))
}

func TestNonJSONAPIResponseIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"truncated json", `{not json`},
		{"login page", `<html><head><meta property="og:image" content="https://cdn/login.jpg"></head></html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupHTTPMock(t)
			registerString(apiPattern, http.StatusOK, tt.body)
			registerString(pagePattern, http.StatusOK, `<meta property="og:image" content="https://cdn/og.jpg">`)

			client, _ := newTestClient(t)
			got, attempts, err := client.Trace(context.Background(), "jane")

			require.Error(t, err)
			assert.True(t, apperrors.IsNotFound(err))
			assert.Equal(t, MsgUserNotFound, err.Error())
			assert.Empty(t, got)

			require.Len(t, attempts, 1)
			assert.Equal(t, StrategyProfileInfo, attempts[0].Strategy)
			assert.Equal(t, OutcomeNotFound, attempts[0].Outcome)
			assert.Equal(t, http.StatusOK, attempts[0].Status)
		})
	}
}

func TestNonJSONReadProxyAPIResponseFallsThrough(t *testing.T) {
	setupHTTPMock(t)
	registerString(apiPattern, http.StatusTooManyRequests, `{}`)
	registerString(pagePattern, http.StatusForbidden, ``)
	registerString(proxyAPIPattern, http.StatusOK, `Title: Instagram\n\nnot json`)
	registerString(proxyPagePattern, http.StatusOK, `"profile_pic_url":"https://cdn/proxy.jpg"`)

	client, _ := newTestClient(t)
	got, attempts, err := client.Trace(context.Background(), "jane")

	require.NoError(t, err)
	assert.Equal(t, "https://cdn/proxy.jpg", got)
	require.Len(t, attempts, 4)
	assert.Equal(t, OutcomeSoftFail, attempts[2].Outcome)
	assert.Contains(t, attempts[2].Reason, "malformed JSON")
}

func TestReadProxyStrategies(t *testing.T) {
	t.Run("proxied api", func(t *testing.T) {
		setupHTTPMock(t)
		registerString(apiPattern, http.StatusTooManyRequests, "")
		registerString(pagePattern, http.StatusForbidden, "")
		registerString(proxyAPIPattern, http.StatusOK, `{"data":{"user":{"profile_pic_url_hd":"https://cdn/proxy-hd.jpg"}}}`)

		client, _ := newTestClient(t)
		got, attempts, err := client.Trace(context.Background(), "jane")

		require.NoError(t, err)
		assert.Equal(t, "https://cdn/proxy-hd.jpg", got)
		require.Len(t, attempts, 3)
		assert.Equal(t, StrategyReadProxyAPI, attempts[2].Strategy)
	})

	t.Run("proxied api without user falls through", func(t *testing.T) {
		setupHTTPMock(t)
		registerString(apiPattern, http.StatusTooManyRequests, "")
		registerString(pagePattern, http.StatusForbidden, "")
		registerString(proxyAPIPattern, http.StatusOK, `{"data":{"user":null}}`)
		registerString(proxyPagePattern, http.StatusOK, `Title: jane
Markdown Content:
"profile_pic_url":"https:\/\/cdn\/proxy-std.jpg"`)

		client, _ := newTestClient(t)
		got, attempts, err := client.Trace(context.Background(), "jane")

		require.NoError(t, err)
		assert.Equal(t, "https://cdn/proxy-std.jpg", got)
		require.Len(t, attempts, 4)
		assert.Equal(t, OutcomeSoftFail, attempts[2].Outcome)
		assert.Equal(t, StrategyReadProxyHTML, attempts[3].Strategy)
		assert.Equal(t, "profile_pic_url", attempts[3].Field)
	})
}

func TestChainExhaustion(t *testing.T) {
	setupHTTPMock(t)
	registerString(apiPattern, http.StatusInternalServerError, "")
	registerString(pagePattern, http.StatusOK, `<html><head><title>Instagram</title></head></html>`)
	registerString(proxyAPIPattern, http.StatusOK, `Title: Instagram`)
	registerString(proxyPagePattern, http.StatusOK, `nothing useful here`)

	client, _ := newTestClient(t)
	got, attempts, err := client.Trace(context.Background(), "jane")

	require.Error(t, err)
	assert.Empty(t, got)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, MsgPictureNotFound, err.Error())
	require.Len(t, attempts, 4)
	for _, a := range attempts {
		assert.Equal(t, OutcomeSoftFail, a.Outcome, a.Strategy)
		assert.NotEmpty(t, a.Reason)
	}
}

func TestTransportErrorsAreSoft(t *testing.T) {
	setupHTTPMock(t)
	// no responders: every request fails at the transport

	client, _ := newTestClient(t)
	_, attempts, err := client.Trace(context.Background(), "jane")

	require.Error(t, err)
	assert.Equal(t, MsgPictureNotFound, err.Error())
	require.Len(t, attempts, 4)
	for _, a := range attempts {
		assert.Equal(t, 0, a.Status)
		assert.Equal(t, OutcomeSoftFail, a.Outcome)
	}
}

func TestCancelledContext(t *testing.T) {
	setupHTTPMock(t)
	registerString(apiPattern, http.StatusOK, `{"data":{"user":{"profile_pic_url":"https://cdn/a.jpg"}}}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client, _ := newTestClient(t)
	_, err := client.FetchProfilePicture(ctx, "jane")

	require.Error(t, err)
	assert.Equal(t, apperrors.KindUpstream, apperrors.KindOf(err))
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestConfigurableEndpoints(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()

		switch {
		case r.URL.Path == ProfileEndpoint:
			w.WriteHeader(http.StatusServiceUnavailable)
		case r.URL.Path == "/jane/":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<meta property="og:image" content="https://cdn/local.jpg">`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := config.DefaultConfig().Upstream
	cfg.APIBaseURL = server.URL
	cfg.WebBaseURL = server.URL
	cfg.ReadProxyBaseURL = server.URL

	client := NewClient(&cfg, logger.NewNopLogger())
	got, err := client.FetchProfilePicture(context.Background(), "jane")

	require.NoError(t, err)
	assert.Equal(t, "https://cdn/local.jpg", got)
	mu.Lock()
	assert.Equal(t, []string{ProfileEndpoint, "/jane/"}, paths)
	mu.Unlock()
	assert.True(t, strings.HasPrefix(client.Endpoints().ProfileInfoURL("jane"), server.URL))
}
