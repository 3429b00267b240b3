package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	apperrors "igavatar/pkg/errors"
	"igavatar/pkg/instagram"
	"igavatar/pkg/logger"
	"igavatar/pkg/resolver"
)

const (
	msgInvalidUsernames = "usernames field is required as a comma-separated string or an array"
	msgInvalidBody      = "request body must be a JSON object or array"
	msgBodyTooLarge     = "request body too large"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// PhotoResponse is the JSON body of a successful single lookup
type PhotoResponse struct {
	URL string `json:"url"`
}

// BatchResponse is the JSON body of both batch endpoints
type BatchResponse struct {
	Results []resolver.BatchItem `json:"results"`
	Meta    resolver.BatchMeta   `json:"meta"`
}

// batchRequest accepts usernames as an array or a delimited string, with text as an alias
type batchRequest struct {
	Usernames json.RawMessage `json:"usernames"`
	Text      json.RawMessage `json:"text"`
}

// handleProfilePhoto handles GET /profile-photo?username=
func (s *Server) handleProfilePhoto(w http.ResponseWriter, r *http.Request) {
	username := instagram.NormalizeUsername(r.URL.Query().Get("username"))

	url, err := s.resolver.Resolve(r.Context(), username)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PhotoResponse{URL: url})
}

// handleProfilePhotoImage handles GET /profile-photo/image?username=
func (s *Server) handleProfilePhotoImage(w http.ResponseWriter, r *http.Request) {
	username := instagram.NormalizeUsername(r.URL.Query().Get("username"))

	url, err := s.resolver.Resolve(r.Context(), username)
	if err != nil {
		writeAppError(w, err)
		return
	}

	tier := s.relay.Serve(w, r, url)
	s.logger.DebugWithFields("profile picture relayed", map[string]interface{}{
		"username": username,
		"tier":     string(tier),
	})
}

// handleProfilePhotosQuery handles GET /profile-photos?usernames=
func (s *Server) handleProfilePhotosQuery(w http.ResponseWriter, r *http.Request) {
	usernames := instagram.SplitUsernames(r.URL.Query().Get("usernames"))
	if len(usernames) == 0 {
		writeJSON(w, http.StatusOK, BatchResponse{Results: []resolver.BatchItem{}})
		return
	}

	s.runBatch(w, r, usernames)
}

// handleProfilePhotosBody handles POST /profile-photos
func (s *Server) handleProfilePhotosBody(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	req, err := decodeBatchRequest(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	usernames, err := parseUsernames(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.runBatch(w, r, usernames)
}

func (s *Server) runBatch(w http.ResponseWriter, r *http.Request, usernames []string) {
	start := time.Now()
	items := s.resolver.ResolveBatch(r.Context(), usernames, s.concurrency)
	meta := resolver.Summarize(items, time.Since(start))

	logger.LogBatchSummary(s.logger, meta.Total, meta.Success, meta.Failed, time.Since(start))
	writeJSON(w, http.StatusOK, BatchResponse{Results: items, Meta: meta})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBatchRequest accepts an object or an array body. An array carries no
// usernames field and yields an empty request; scalars are rejected.
func decodeBatchRequest(raw json.RawMessage) (batchRequest, error) {
	var req batchRequest

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return req, nil
	}

	switch trimmed[0] {
	case '{':
		err := json.Unmarshal(trimmed, &req)
		return req, err
	case '[':
		return req, nil
	default:
		return req, errors.New(msgInvalidBody)
	}
}

// parseUsernames picks usernames, falling back to text, and normalizes either form.
// A missing or null field counts as an empty string.
func parseUsernames(req batchRequest) ([]string, error) {
	raw := req.Usernames
	if isAbsent(raw) {
		raw = req.Text
	}
	if isAbsent(raw) {
		return []string{}, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return instagram.SplitUsernames(text), nil
	}

	var values []interface{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, errors.New(msgInvalidUsernames)
	}

	usernames := make([]string, 0, len(values))
	for _, v := range values {
		if name := instagram.NormalizeUsername(stringify(v)); name != "" {
			usernames = append(usernames, name)
		}
	}
	return usernames, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// stringify renders a decoded JSON array element as text
func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

func writeAppError(w http.ResponseWriter, err error) {
	writeError(w, apperrors.StatusOf(err), err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
