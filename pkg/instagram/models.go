package instagram

// WebProfileInfoResponse represents the top-level response from the web_profile_info endpoint
type WebProfileInfoResponse struct {
	Data   *ProfileData `json:"data"`
	Status string       `json:"status"`
}

// ProfileData wraps the user information in the response
type ProfileData struct {
	User *ProfileUser `json:"user"`
}

// ProfileUser holds the profile fields the resolver needs
type ProfileUser struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	IsPrivate       bool   `json:"is_private"`
	ProfilePicURL   string `json:"profile_pic_url"`
	ProfilePicURLHD string `json:"profile_pic_url_hd"`
}

// User returns the profile user or nil when the payload carries none
func (r *WebProfileInfoResponse) User() *ProfileUser {
	if r == nil || r.Data == nil {
		return nil
	}
	return r.Data.User
}
