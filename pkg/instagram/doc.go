// Package instagram resolves Instagram usernames to profile picture URLs.
//
// This package includes:
//   - NormalizeUsername and SplitUsernames for turning user input into cache keys
//   - Endpoint builders for the web_profile_info API, profile pages and the read-proxy relay
//   - A Client that runs a fixed, sequential chain of strategies
//
// The chain, in order:
//  1. web_profile_info API with a browser user agent and x-ig-app-id
//  2. the public profile page fetched as a search crawler (og:image, twitter:image, script payloads)
//  3. web_profile_info through the read-proxy relay
//  4. the profile page text through the read-proxy relay
//
// A 404 from any strategy (or a 200 from the API without a user) stops the
// chain with a NotFound error. Every other failure falls through to the next
// strategy. When all strategies fall through the chain fails with NotFound.
//
// Example usage:
//
//	cfg := config.DefaultConfig()
//	client := instagram.NewClient(&cfg.Upstream, log)
//
//	url, err := client.FetchProfilePicture(ctx, instagram.NormalizeUsername("@Jane_Doe"))
//	if err != nil {
//	    status := errors.StatusOf(err) // 404 or 500
//	}
package instagram
