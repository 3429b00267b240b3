package instagram

import (
	"encoding/json"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	picURLHDPattern = regexp.MustCompile(`"profile_pic_url_hd"\s*:\s*"(.*?)"`)
	picURLPattern   = regexp.MustCompile(`"profile_pic_url"\s*:\s*"(.*?)"`)
)

// parseProfileInfo decodes a web_profile_info payload
func parseProfileInfo(body []byte) (*WebProfileInfoResponse, error) {
	var resp WebProfileInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// pictureFromHTML extracts a profile picture URL from a profile page.
// Meta tags win over embedded script payloads.
func pictureFromHTML(body string) (string, string) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", ""
	}

	var ogImage, twitterImage string
	var scripts []string

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				content := getAttr(n, "content")
				if getAttr(n, "property") == "og:image" && ogImage == "" {
					ogImage = content
				}
				if getAttr(n, "name") == "twitter:image" && twitterImage == "" {
					twitterImage = content
				}
			case "script":
				scripts = append(scripts, nodeText(n))
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}

	traverse(doc)

	if ogImage != "" {
		return ogImage, "og:image"
	}
	if twitterImage != "" {
		return twitterImage, "twitter:image"
	}

	for _, text := range scripts {
		if !strings.Contains(text, "profile_pic_url") {
			continue
		}
		if picURL, field := pictureFromText(text); picURL != "" {
			return picURL, field
		}
	}

	return "", ""
}

// pictureFromText scans free text for the HD picture field, then the standard one.
// Matches are JSON-string unescaped.
func pictureFromText(text string) (string, string) {
	if picURL := matchAndUnescape(picURLHDPattern, text); picURL != "" {
		return picURL, "profile_pic_url_hd"
	}
	if picURL := matchAndUnescape(picURLPattern, text); picURL != "" {
		return picURL, "profile_pic_url"
	}
	return "", ""
}

func matchAndUnescape(pattern *regexp.Regexp, text string) string {
	m := pattern.FindStringSubmatch(text)
	if len(m) < 2 || m[1] == "" {
		return ""
	}
	return unescapeJSONString(m[1])
}

// unescapeJSONString decodes the body of a JSON string literal (\/ and \u0026
// escapes are common in Instagram payloads). Invalid escapes yield "".
func unescapeJSONString(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return ""
	}
	return out
}

// getAttr gets an attribute value from an HTML node
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// nodeText concatenates the text children of n
func nodeText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}
