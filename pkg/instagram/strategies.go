package instagram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apperrors "igavatar/pkg/errors"
)

const (
	// MsgUserNotFound is returned when Instagram authoritatively reports no such account
	MsgUserNotFound = "user not found"

	// MsgPictureNotFound is returned when every strategy fell through
	MsgPictureNotFound = "profile picture not found: the username may be wrong, the account may be private, or Instagram may be blocking access"
)

// Strategy names one step of the resolution chain
type Strategy string

const (
	StrategyProfileInfo   Strategy = "web_profile_info"
	StrategyHTMLScrape    Strategy = "html_scrape"
	StrategyReadProxyAPI  Strategy = "read_proxy_api"
	StrategyReadProxyHTML Strategy = "read_proxy_html"
)

// Outcome is the verdict of a single strategy attempt
type Outcome int

const (
	// OutcomeSoftFail means the strategy could not produce a URL; try the next one
	OutcomeSoftFail Outcome = iota
	// OutcomeSuccess means the strategy produced a picture URL
	OutcomeSuccess
	// OutcomeNotFound means upstream authoritatively reported no such user; stop the chain
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "soft_fail"
	}
}

// Attempt records what one strategy did for one username
type Attempt struct {
	Strategy Strategy
	Status   int    // HTTP status, 0 when no response was received
	URL      string // picture URL on success
	Field    string // field or tag the URL was taken from
	Reason   string // why a soft fail happened
	Outcome  Outcome
	Duration time.Duration
}

type strategy struct {
	name Strategy
	run  func(ctx context.Context, username string) Attempt
}

func success(status int, picURL, field string) Attempt {
	return Attempt{Status: status, URL: picURL, Field: field, Outcome: OutcomeSuccess}
}

func softFail(status int, format string, args ...interface{}) Attempt {
	return Attempt{Status: status, Reason: fmt.Sprintf(format, args...), Outcome: OutcomeSoftFail}
}

func notFound(status int) Attempt {
	return Attempt{Status: status, Outcome: OutcomeNotFound}
}

// FetchProfilePicture resolves username to a profile picture URL.
// It fails with a NotFound error when upstream reports no such user or every
// strategy fell through, and with an Upstream error when ctx ends mid-chain.
func (c *Client) FetchProfilePicture(ctx context.Context, username string) (string, error) {
	picURL, _, err := c.Trace(ctx, username)
	return picURL, err
}

// Trace runs the strategy chain like FetchProfilePicture and also returns
// every attempt made, in order.
func (c *Client) Trace(ctx context.Context, username string) (string, []Attempt, error) {
	attempts := make([]Attempt, 0, len(c.strategies))

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return "", attempts, apperrors.Upstream("profile lookup interrupted: %v", err)
		}

		start := time.Now()
		attempt := s.run(ctx, username)
		attempt.Strategy = s.name
		attempt.Duration = time.Since(start)
		attempts = append(attempts, attempt)

		c.recordAttempt(username, attempt)

		switch attempt.Outcome {
		case OutcomeSuccess:
			return attempt.URL, attempts, nil
		case OutcomeNotFound:
			return "", attempts, apperrors.NotFound(MsgUserNotFound)
		}
	}

	if err := ctx.Err(); err != nil {
		return "", attempts, apperrors.Upstream("profile lookup interrupted: %v", err)
	}

	return "", attempts, apperrors.NotFound(MsgPictureNotFound)
}

func (c *Client) recordAttempt(username string, a Attempt) {
	c.metrics.RecordStrategyAttempt(string(a.Strategy), a.Outcome.String(), a.Duration.Seconds())

	fields := map[string]interface{}{
		"username": username,
		"strategy": string(a.Strategy),
		"status":   a.Status,
		"outcome":  a.Outcome.String(),
		"duration": a.Duration,
	}

	switch a.Outcome {
	case OutcomeSoftFail:
		fields["reason"] = a.Reason
		fields["valid_username"] = IsValidUsername(username)
		c.logger.InfoWithFields("strategy fell through", fields)
	case OutcomeSuccess:
		fields["field"] = a.Field
		c.logger.DebugWithFields("strategy succeeded", fields)
	default:
		c.logger.DebugWithFields("strategy reported user not found", fields)
	}
}

// fetchProfileInfo queries the web_profile_info API directly
func (c *Client) fetchProfileInfo(ctx context.Context, username string) Attempt {
	resp, err := c.doRequest(ctx, c.apiClient, c.endpoints.ProfileInfoURL(username), c.apiHeaders())
	if err != nil {
		return softFail(0, "%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return notFound(resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return softFail(resp.StatusCode, "unexpected status code: %d", resp.StatusCode)
	}

	body, err := readBody(resp)
	if err != nil {
		return softFail(resp.StatusCode, "%v", err)
	}

	return profileInfoAttempt(resp.StatusCode, body, true)
}

// scrapeProfilePage fetches the public profile page as a search crawler
func (c *Client) scrapeProfilePage(ctx context.Context, username string) Attempt {
	resp, err := c.doRequest(ctx, c.htmlClient, c.endpoints.ProfilePageURL(username), c.pageHeaders())
	if err != nil {
		return softFail(0, "%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return notFound(resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return softFail(resp.StatusCode, "unexpected status code: %d", resp.StatusCode)
	}

	body, err := readBody(resp)
	if err != nil {
		return softFail(resp.StatusCode, "%v", err)
	}

	picURL, field := pictureFromHTML(string(body))
	if picURL == "" {
		return softFail(resp.StatusCode, "no picture in profile page")
	}
	return success(resp.StatusCode, picURL, field)
}

// fetchProfileInfoViaProxy queries web_profile_info through the read-proxy relay
func (c *Client) fetchProfileInfoViaProxy(ctx context.Context, username string) Attempt {
	target := c.endpoints.ReadProxyURL(c.endpoints.ProfileInfoURL(username))

	resp, err := c.doRequest(ctx, c.apiClient, target, c.proxyHeaders())
	if err != nil {
		return softFail(0, "%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return notFound(resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return softFail(resp.StatusCode, "unexpected status code: %d", resp.StatusCode)
	}

	body, err := readBody(resp)
	if err != nil {
		return softFail(resp.StatusCode, "%v", err)
	}

	return profileInfoAttempt(resp.StatusCode, body, false)
}

// scanProfilePageViaProxy fetches the profile page text through the read-proxy
// relay and scans it for picture fields
func (c *Client) scanProfilePageViaProxy(ctx context.Context, username string) Attempt {
	target := c.endpoints.ReadProxyURL(c.endpoints.ProfilePageURL(username))

	resp, err := c.doRequest(ctx, c.apiClient, target, c.proxyHeaders())
	if err != nil {
		return softFail(0, "%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return notFound(resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return softFail(resp.StatusCode, "unexpected status code: %d", resp.StatusCode)
	}

	body, err := readBody(resp)
	if err != nil {
		return softFail(resp.StatusCode, "%v", err)
	}

	picURL, field := pictureFromText(string(body))
	if picURL == "" {
		return softFail(resp.StatusCode, "no picture field in relayed page")
	}
	return success(resp.StatusCode, picURL, field)
}

// profileInfoAttempt turns a 200 web_profile_info body into an attempt.
// When missingUserIsNotFound is set an absent user stops the chain, and a body
// that is not JSON at all (a login wall, for instance) counts as absent.
func profileInfoAttempt(status int, body []byte, missingUserIsNotFound bool) Attempt {
	info, err := parseProfileInfo(body)
	if err != nil {
		if missingUserIsNotFound {
			return notFound(status)
		}
		return softFail(status, "malformed JSON: %v", err)
	}

	user := info.User()
	if user == nil {
		if missingUserIsNotFound {
			return notFound(status)
		}
		return softFail(status, "no user in payload")
	}

	if user.ProfilePicURLHD != "" {
		return success(status, user.ProfilePicURLHD, "profile_pic_url_hd")
	}
	if user.ProfilePicURL != "" {
		return success(status, user.ProfilePicURL, "profile_pic_url")
	}
	return softFail(status, "no picture field in payload")
}
