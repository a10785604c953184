package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"studylink/internal/studylink"
)

// DefaultBaseURL is where the backend listens in development.
const DefaultBaseURL = "http://localhost:8000"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// List methods supported by the backend.
const (
	ListMethodGet  = "get"  // GET /items/groups/?user_id=...
	ListMethodPost = "post" // POST /items/my_groups/
)

// HTTPBackend talks to the study group REST API.
type HTTPBackend struct {
	baseURL    *url.URL
	client     *http.Client
	listMethod string
	logger     studylink.Logger
}

// NewHTTPBackend creates a backend rooted at baseURL. An empty baseURL uses
// DefaultBaseURL and an empty listMethod uses ListMethodGet.
func NewHTTPBackend(baseURL, listMethod string, client *http.Client, logger studylink.Logger) (*HTTPBackend, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https: %s", baseURL)
	}

	switch strings.ToLower(listMethod) {
	case "", ListMethodGet:
		listMethod = ListMethodGet
	case ListMethodPost:
		listMethod = ListMethodPost
	default:
		return nil, fmt.Errorf("unknown list method: %s", listMethod)
	}

	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = studylink.NewNopLogger()
	}

	return &HTTPBackend{
		baseURL:    u,
		client:     client,
		listMethod: listMethod,
		logger:     logger,
	}, nil
}

type listRequest struct {
	UserID     studylink.UserID `json:"user_id"`
	IsSearch   bool             `json:"is_search"`
	CourseCode string           `json:"course_code"`
}

type createRequest struct {
	OwnerID     studylink.UserID `json:"owner_id"`
	Name        string           `json:"name"`
	CourseCode  string           `json:"course_code"`
	Description string           `json:"description"`
	MaxMembers  int              `json:"max_members"`
	MeetingDay  string           `json:"meeting_day"`
	MeetingTime string           `json:"meeting_time"`
	Building    string           `json:"building"`
	Room        string           `json:"room"`
	NextMeeting string           `json:"next_meeting"`
}

type membershipRequest struct {
	GroupID int64            `json:"group_id"`
	UserID  studylink.UserID `json:"user_id"`
}

// ListGroups returns the groups visible to q.UserID.
func (b *HTTPBackend) ListGroups(ctx context.Context, q studylink.ListQuery) ([]studylink.Listing, error) {
	var raw []map[string]any
	var err error

	if b.listMethod == ListMethodPost {
		err = b.do(ctx, "list groups", http.MethodPost, "/items/my_groups/", nil, listRequest{
			UserID:     q.UserID,
			IsSearch:   q.IsSearch,
			CourseCode: q.CourseCode,
		}, &raw)
	} else {
		params := url.Values{}
		params.Set("user_id", q.UserID.String())
		params.Set("is_search", strconv.FormatBool(q.IsSearch))
		if q.CourseCode != "" {
			params.Set("course_code", q.CourseCode)
		}
		err = b.do(ctx, "list groups", http.MethodGet, "/items/groups/", params, nil, &raw)
	}
	if err != nil {
		return nil, err
	}
	return normalizeRecords(raw, b.logger), nil
}

// CreateGroup creates a group owned by owner. The backend may answer with the
// full record, with only an identifier, or with an empty body.
func (b *HTTPBackend) CreateGroup(ctx context.Context, owner studylink.UserID, d studylink.Draft) (*studylink.Listing, error) {
	var body json.RawMessage
	err := b.do(ctx, "create group", http.MethodPost, "/items/create/", nil, createRequest{
		OwnerID:     owner,
		Name:        d.Name,
		CourseCode:  d.Subject,
		Description: d.Description,
		MaxMembers:  d.MaxMembers,
		MeetingDay:  d.MeetingDay,
		MeetingTime: d.MeetingTime,
		Building:    d.Building,
		Room:        d.Floor,
		NextMeeting: d.NextMeeting(),
	}, &body)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if len(body) == 0 || json.Unmarshal(body, &raw) != nil || len(raw) == 0 {
		return nil, nil
	}

	listing, err := normalizeRecord(raw)
	if err != nil {
		b.logger.Debug("create response carried no group record", "error", err)
		return nil, nil
	}
	if _, hasName := raw["name"]; !hasName {
		// Acknowledgement with only an id: fill the rest in from the draft.
		g := d.Preview()
		g.ID = listing.Group.ID
		g.OrganizerID = owner
		listing.Group = g
	}
	return &listing, nil
}

// JoinGroup adds user to the group.
func (b *HTTPBackend) JoinGroup(ctx context.Context, groupID int64, user studylink.UserID) error {
	return b.do(ctx, "join group", http.MethodPost, "/items/join/", nil, membershipRequest{GroupID: groupID, UserID: user}, nil)
}

// LeaveGroup removes user from the group.
func (b *HTTPBackend) LeaveGroup(ctx context.Context, groupID int64, user studylink.UserID) error {
	return b.do(ctx, "leave group", http.MethodPost, "/items/leave/", nil, membershipRequest{GroupID: groupID, UserID: user}, nil)
}

// DeleteGroup deletes the group on behalf of user.
func (b *HTTPBackend) DeleteGroup(ctx context.Context, groupID int64, user studylink.UserID) error {
	return b.do(ctx, "delete group", http.MethodPost, "/items/delete/", nil, membershipRequest{GroupID: groupID, UserID: user}, nil)
}

// do sends one request and decodes a JSON response into out when out is
// non-nil and the body is not empty.
func (b *HTTPBackend) do(ctx context.Context, op, method, path string, query url.Values, body any, out any) error {
	u := *b.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return classifyTransport(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classifyTransport(op, err)
	}

	b.logger.Debug("backend request",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start).Truncate(time.Millisecond),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &studylink.StatusError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(data),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w: %v", op, studylink.ErrMalformedResponse, err)
	}
	return nil
}

// classifyTransport maps a failed round trip onto ErrTimeout or ErrUnavailable.
func classifyTransport(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%s: %w: %w", op, studylink.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, studylink.ErrUnavailable, err)
}

// errorDetail extracts a readable message from an error body. FastAPI-style
// bodies carry {"detail": "..."} or {"detail": [{"msg": "..."}]}.
func errorDetail(body []byte) string {
	var parsed struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Detail != nil {
		switch d := parsed.Detail.(type) {
		case string:
			return d
		case []any:
			msgs := make([]string, 0, len(d))
			for _, item := range d {
				if m, ok := item.(map[string]any); ok {
					if msg, ok := m["msg"].(string); ok {
						msgs = append(msgs, msg)
					}
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}

	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}

// Compile-time check that HTTPBackend implements studylink.Backend
var _ studylink.Backend = (*HTTPBackend)(nil)
