package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"studylink/internal/studylink"
)

// recordedRequest is what the test server saw.
type recordedRequest struct {
	Method    string
	Path      string
	Query     map[string]string
	Body      map[string]any
	RequestID string
}

type testServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
}

// newTestServer answers every request with status and body.
func newTestServer(t *testing.T, status int, body string) *testServer {
	t.Helper()
	ts := &testServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			Method:    r.Method,
			Path:      r.URL.Path,
			Query:     map[string]string{},
			RequestID: r.Header.Get("X-Request-ID"),
		}
		for k := range r.URL.Query() {
			rec.Query[k] = r.URL.Query().Get(k)
		}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &rec.Body)
		}
		ts.mu.Lock()
		ts.requests = append(ts.requests, rec)
		ts.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) last(t *testing.T) recordedRequest {
	t.Helper()
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.requests) == 0 {
		t.Fatal("server saw no requests")
	}
	return ts.requests[len(ts.requests)-1]
}

func newTestBackend(t *testing.T, baseURL, listMethod string) *HTTPBackend {
	t.Helper()
	b, err := NewHTTPBackend(baseURL, listMethod, nil, nil)
	if err != nil {
		t.Fatalf("NewHTTPBackend() error = %v", err)
	}
	return b
}

func TestNewHTTPBackend(t *testing.T) {
	tests := []struct {
		name       string
		baseURL    string
		listMethod string
		wantErr    bool
	}{
		{name: "defaults", baseURL: "", listMethod: ""},
		{name: "trailing slash", baseURL: "http://example.test/api/", listMethod: "GET"},
		{name: "post listing", baseURL: "https://example.test", listMethod: "post"},
		{name: "bad scheme", baseURL: "ftp://example.test", wantErr: true},
		{name: "bad list method", baseURL: "http://example.test", listMethod: "put", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHTTPBackend(tt.baseURL, tt.listMethod, nil, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewHTTPBackend() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHTTPBackend_ListGroups(t *testing.T) {
	const body = `[
		{"group_id": 1, "name": "Calculus Study", "course_code": "MATH146", "current_members": 2, "max_members": 6, "has_joined": true},
		{"name": "missing id"},
		{"eid": 2, "name": "Chem Review", "members": 4, "max_members": 4}
	]`

	t.Run("get", func(t *testing.T) {
		ts := newTestServer(t, http.StatusOK, body)
		b := newTestBackend(t, ts.URL, ListMethodGet)

		got, err := b.ListGroups(context.Background(), studylink.ListQuery{UserID: 5, IsSearch: true, CourseCode: studylink.SearchAllCourses})
		if err != nil {
			t.Fatalf("ListGroups() error = %v", err)
		}

		req := ts.last(t)
		if req.Method != http.MethodGet || req.Path != "/items/groups/" {
			t.Errorf("request = %s %s, want GET /items/groups/", req.Method, req.Path)
		}
		wantQuery := map[string]string{"user_id": "5", "is_search": "true", "course_code": "SEARCH_ALL"}
		for k, v := range wantQuery {
			if req.Query[k] != v {
				t.Errorf("query %s = %q, want %q", k, req.Query[k], v)
			}
		}
		if req.RequestID == "" {
			t.Error("X-Request-ID header missing")
		}

		if len(got) != 2 {
			t.Fatalf("len(ListGroups()) = %d, want 2", len(got))
		}
		if got[0].Group.ID != 1 || got[0].HasJoined == nil || !*got[0].HasJoined {
			t.Errorf("first = %+v, want id 1 joined", got[0])
		}
		if got[1].Group.ID != 2 || got[1].Group.Members != 4 {
			t.Errorf("second = %+v, want id 2 with 4 members", got[1].Group)
		}
	})

	t.Run("post", func(t *testing.T) {
		ts := newTestServer(t, http.StatusOK, body)
		b := newTestBackend(t, ts.URL, ListMethodPost)

		if _, err := b.ListGroups(context.Background(), studylink.ListQuery{UserID: 7, CourseCode: "MATH146"}); err != nil {
			t.Fatalf("ListGroups() error = %v", err)
		}

		req := ts.last(t)
		if req.Method != http.MethodPost || req.Path != "/items/my_groups/" {
			t.Errorf("request = %s %s, want POST /items/my_groups/", req.Method, req.Path)
		}
		if req.Body["user_id"] != float64(7) || req.Body["is_search"] != false || req.Body["course_code"] != "MATH146" {
			t.Errorf("body = %v, want user_id 7, is_search false, course_code MATH146", req.Body)
		}
	})

	t.Run("base path is kept", func(t *testing.T) {
		ts := newTestServer(t, http.StatusOK, `[]`)
		b := newTestBackend(t, ts.URL+"/api/", ListMethodGet)

		got, err := b.ListGroups(context.Background(), studylink.ListQuery{UserID: 5})
		if err != nil {
			t.Fatalf("ListGroups() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("ListGroups() = %v, want empty", got)
		}
		if req := ts.last(t); req.Path != "/api/items/groups/" {
			t.Errorf("path = %q, want /api/items/groups/", req.Path)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		ts := newTestServer(t, http.StatusOK, `{"not": "a list"}`)
		b := newTestBackend(t, ts.URL, ListMethodGet)

		_, err := b.ListGroups(context.Background(), studylink.ListQuery{UserID: 5})
		if !errors.Is(err, studylink.ErrMalformedResponse) {
			t.Errorf("ListGroups() error = %v, want ErrMalformedResponse", err)
		}
	})
}

func TestHTTPBackend_Mutations(t *testing.T) {
	tests := []struct {
		name string
		path string
		call func(*HTTPBackend) error
	}{
		{"join", "/items/join/", func(b *HTTPBackend) error { return b.JoinGroup(context.Background(), 3, 5) }},
		{"leave", "/items/leave/", func(b *HTTPBackend) error { return b.LeaveGroup(context.Background(), 3, 5) }},
		{"delete", "/items/delete/", func(b *HTTPBackend) error { return b.DeleteGroup(context.Background(), 3, 5) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, http.StatusOK, `{"message": "ok"}`)
			b := newTestBackend(t, ts.URL, "")

			if err := tt.call(b); err != nil {
				t.Fatalf("%s error = %v", tt.name, err)
			}

			req := ts.last(t)
			if req.Method != http.MethodPost || req.Path != tt.path {
				t.Errorf("request = %s %s, want POST %s", req.Method, req.Path, tt.path)
			}
			if req.Body["group_id"] != float64(3) || req.Body["user_id"] != float64(5) {
				t.Errorf("body = %v, want group_id 3 and user_id 5", req.Body)
			}
		})
	}
}

func TestHTTPBackend_CreateGroup(t *testing.T) {
	draft := studylink.Draft{
		Name:        "Algo Study",
		Subject:     "CMPUT204",
		Description: "Graphs",
		MaxMembers:  5,
		MeetingDay:  "Tuesday",
		MeetingTime: "17:00",
		Building:    "CSC",
		Floor:       "B-10",
	}

	t.Run("sends the full payload", func(t *testing.T) {
		ts := newTestServer(t, http.StatusOK, `{"group_id": 9, "name": "Algo Study", "course_code": "CMPUT204", "current_members": 1, "max_members": 5, "organizer_id": 5}`)
		b := newTestBackend(t, ts.URL, "")

		got, err := b.CreateGroup(context.Background(), 5, draft)
		if err != nil {
			t.Fatalf("CreateGroup() error = %v", err)
		}

		req := ts.last(t)
		if req.Path != "/items/create/" {
			t.Errorf("path = %q, want /items/create/", req.Path)
		}
		want := map[string]any{
			"owner_id":     float64(5),
			"name":         "Algo Study",
			"course_code":  "CMPUT204",
			"description":  "Graphs",
			"max_members":  float64(5),
			"meeting_day":  "Tuesday",
			"meeting_time": "17:00",
			"building":     "CSC",
			"room":         "B-10",
			"next_meeting": "Tuesday, 17:00",
		}
		for k, v := range want {
			if req.Body[k] != v {
				t.Errorf("body[%s] = %v, want %v", k, req.Body[k], v)
			}
		}

		if got == nil || got.Group.ID != 9 || got.Group.Members != 1 {
			t.Errorf("CreateGroup() = %+v, want id 9 with 1 member", got)
		}
	})

	t.Run("id only acknowledgement", func(t *testing.T) {
		ts := newTestServer(t, http.StatusCreated, `{"id": 11}`)
		b := newTestBackend(t, ts.URL, "")

		got, err := b.CreateGroup(context.Background(), 5, draft)
		if err != nil {
			t.Fatalf("CreateGroup() error = %v", err)
		}
		if got == nil {
			t.Fatal("CreateGroup() = nil, want record built from the draft")
		}
		if got.Group.ID != 11 || got.Group.Name != "Algo Study" || got.Group.OrganizerID != 5 {
			t.Errorf("CreateGroup() = %+v, want id 11 Algo Study owned by 5", got.Group)
		}
	})

	for _, body := range []string{``, `null`, `"created"`, `{}`} {
		t.Run("no record in "+body, func(t *testing.T) {
			ts := newTestServer(t, http.StatusOK, body)
			b := newTestBackend(t, ts.URL, "")

			got, err := b.CreateGroup(context.Background(), 5, draft)
			if err != nil {
				t.Fatalf("CreateGroup() error = %v", err)
			}
			if got != nil {
				t.Errorf("CreateGroup() = %+v, want nil", got)
			}
		})
	}
}

func TestHTTPBackend_Errors(t *testing.T) {
	t.Run("status with string detail", func(t *testing.T) {
		ts := newTestServer(t, http.StatusConflict, `{"detail": "Group is full"}`)
		b := newTestBackend(t, ts.URL, "")

		err := b.JoinGroup(context.Background(), 1, 5)
		var statusErr *studylink.StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("JoinGroup() error = %v, want StatusError", err)
		}
		if statusErr.StatusCode != http.StatusConflict || statusErr.Detail != "Group is full" {
			t.Errorf("StatusError = %+v, want 409 Group is full", statusErr)
		}
		if !errors.Is(err, studylink.ErrRejected) {
			t.Error("errors.Is(err, ErrRejected) = false")
		}
	})

	t.Run("validation detail list", func(t *testing.T) {
		ts := newTestServer(t, http.StatusUnprocessableEntity, `{"detail": [{"loc": ["body", "name"], "msg": "field required"}, {"msg": "value is not a valid integer"}]}`)
		b := newTestBackend(t, ts.URL, "")

		_, err := b.CreateGroup(context.Background(), 5, studylink.Draft{})
		var statusErr *studylink.StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("CreateGroup() error = %v, want StatusError", err)
		}
		if want := "field required; value is not a valid integer"; statusErr.Detail != want {
			t.Errorf("Detail = %q, want %q", statusErr.Detail, want)
		}
	})

	t.Run("plain text body", func(t *testing.T) {
		ts := newTestServer(t, http.StatusInternalServerError, "Internal Server Error")
		b := newTestBackend(t, ts.URL, "")

		err := b.LeaveGroup(context.Background(), 1, 5)
		var statusErr *studylink.StatusError
		if !errors.As(err, &statusErr) || statusErr.Detail != "Internal Server Error" {
			t.Errorf("LeaveGroup() error = %v, want 500 with body detail", err)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		ts := newTestServer(t, http.StatusOK, `[]`)
		url := ts.URL
		ts.Close()
		b := newTestBackend(t, url, "")

		_, err := b.ListGroups(context.Background(), studylink.ListQuery{UserID: 5})
		if !errors.Is(err, studylink.ErrUnavailable) {
			t.Errorf("ListGroups() error = %v, want ErrUnavailable", err)
		}
	})

	t.Run("deadline", func(t *testing.T) {
		release := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer ts.Close()
		defer close(release)
		b := newTestBackend(t, ts.URL, "")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		_, err := b.ListGroups(ctx, studylink.ListQuery{UserID: 5})
		if !errors.Is(err, studylink.ErrTimeout) {
			t.Errorf("ListGroups() error = %v, want ErrTimeout", err)
		}
		if !studylink.IsRetryable(err) {
			t.Error("IsRetryable() = false, want true")
		}
	})
}

func TestErrorDetail_Truncates(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	got := errorDetail(long)
	if len(got) != 203 {
		t.Errorf("len(errorDetail()) = %d, want 203", len(got))
	}
}
