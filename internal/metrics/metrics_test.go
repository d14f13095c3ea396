package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandlerSummary(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest(http.MethodGet, "/health", 200, 0.01)
	m.ObserveHTTPRequest(http.MethodPost, "/auth/signin", 401, 0.02)
	m.IncAuthSuccess("signin")
	m.IncAuthFailure("signin")
	m.IncSessionRotated()
	m.IncInvitation("created")
	m.IncInvitation("accepted")
	m.IncRateLimitRejection("signin")
	m.IncNotification("sent")
	m.IncNotification("error")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var s Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}
	if s.HTTP.TotalRequests != 2 {
		t.Errorf("totalRequests = %v, want 2", s.HTTP.TotalRequests)
	}
	if s.HTTP.ErrorRate != 0.5 {
		t.Errorf("errorRate = %v, want 0.5", s.HTTP.ErrorRate)
	}
	if s.Auth.Successes != 1 || s.Auth.Failures != 1 {
		t.Errorf("auth = %+v", s.Auth)
	}
	if s.Sessions.Rotations != 1 {
		t.Errorf("rotations = %v", s.Sessions.Rotations)
	}
	if s.Invitations["created"] != 1 || s.Invitations["accepted"] != 1 {
		t.Errorf("invitations = %v", s.Invitations)
	}
	if s.RateLimit.Rejections != 1 {
		t.Errorf("rejections = %v", s.RateLimit.Rejections)
	}
	if s.Notifications.Sent != 1 || s.Notifications.Errors != 1 {
		t.Errorf("notifications = %+v", s.Notifications)
	}
}

func TestDBPoolCollector(t *testing.T) {
	m := New()
	m.RegisterDBPoolCollector(func() (int32, int32, int32) { return 10, 4, 6 })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	var s Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}
	if s.DB.TotalConns != 10 || s.DB.IdleConns != 4 || s.DB.AcquiredConns != 6 {
		t.Errorf("db = %+v", s.DB)
	}
}
