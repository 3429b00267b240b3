package instagram

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// APIBaseURL is the host serving the machine-readable profile endpoint
	APIBaseURL = "https://i.instagram.com"

	// WebBaseURL is the host serving human-facing profile pages
	WebBaseURL = "https://www.instagram.com"

	// ReadProxyBaseURL is the text-extraction relay used when Instagram blocks direct access
	ReadProxyBaseURL = "https://r.jina.ai"

	// ProfileEndpoint is the endpoint pattern for user profiles
	ProfileEndpoint = "/api/v1/users/web_profile_info/"

	// AppID is the web client identifier Instagram expects in x-ig-app-id
	AppID = "936619743392459"
)

// Endpoints holds the base URLs the strategy chain talks to
type Endpoints struct {
	APIBaseURL       string
	WebBaseURL       string
	ReadProxyBaseURL string
}

// DefaultEndpoints returns the production Instagram and read-proxy hosts
func DefaultEndpoints() Endpoints {
	return Endpoints{
		APIBaseURL:       APIBaseURL,
		WebBaseURL:       WebBaseURL,
		ReadProxyBaseURL: ReadProxyBaseURL,
	}
}

// ProfileInfoURL constructs the web_profile_info URL for a user
func (e Endpoints) ProfileInfoURL(username string) string {
	params := url.Values{}
	params.Set("username", username)

	return fmt.Sprintf("%s%s?%s", strings.TrimRight(e.APIBaseURL, "/"), ProfileEndpoint, params.Encode())
}

// ProfilePageURL constructs the public profile page URL for a user
func (e Endpoints) ProfilePageURL(username string) string {
	return fmt.Sprintf("%s/%s/", strings.TrimRight(e.WebBaseURL, "/"), url.PathEscape(username))
}

// ReadProxyURL wraps target so it is fetched through the read-proxy relay.
// The relay expects the target with a plain http scheme appended to its path.
func (e Endpoints) ReadProxyURL(target string) string {
	return fmt.Sprintf("%s/http://%s", strings.TrimRight(e.ReadProxyBaseURL, "/"), stripScheme(target))
}

// stripScheme removes a leading http:// or https://
func stripScheme(rawURL string) string {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.HasPrefix(lower, "https://"):
		return rawURL[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		return rawURL[len("http://"):]
	default:
		return rawURL
	}
}
