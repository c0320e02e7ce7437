package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gatherly-dev/gatherly/internal/api"
	"github.com/gatherly-dev/gatherly/internal/config"
	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/gatherly-dev/gatherly/internal/queue"
	"github.com/gatherly-dev/gatherly/internal/server"
	"github.com/gatherly-dev/gatherly/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t      *testing.T
	app    *server.App
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "test"},
		Auth:   config.AuthConfig{JWTSecret: "test-secret", FrontendURL: "http://localhost:3000"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := server.NewApp(cfg, testutil.NewDB(t), queue.NewMemoryQueue(64), logger)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	return &testServer{t: t, app: app, router: api.NewRouter(cfg, app.RouterDeps())}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	decode(s.t, w, &resp)
	return resp.Token
}

func (s *testServer) activationToken(userID string) string {
	s.t.Helper()
	var n models.Notification
	require.NoError(s.t, s.app.DB.
		Where("kind = ? AND user_id = ?", models.NotificationAccountActivation, userID).
		Order("created_at DESC").
		First(&n).Error)
	return fmt.Sprint(n.Context["token"])
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/version", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/events", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/categories", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/events/42", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/events/abc", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/events?start_date=tomorrow", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/auth/me", "", nil).Code)
}

func TestRegistrationActivationAndRSVPFlow(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.app.Directory.CreateAdmin(ctx, "root", "root@example.com", "rootpass1")
	require.NoError(t, err)
	adminToken := s.login("root", "rootpass1")

	// Admin sets up the catalog.
	w := s.do(http.MethodPost, "/categories", adminToken, map[string]string{"name": "Music"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var category models.Category
	decode(t, w, &category)

	w = s.do(http.MethodPost, "/events", adminToken, map[string]interface{}{
		"name": "Jazz Night", "date": "2030-01-10", "time": "19:00", "location": "Blue Note", "category_id": category.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var event models.Event
	decode(t, w, &event)
	assert.True(t, event.IsUpcoming)

	// Bob registers and can't log in until he activates.
	w = s.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": "bob", "email": "bob@example.com", "password": "s3cretpass", "password_confirm": "s3cretpass",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var bob models.User
	decode(t, w, &bob)
	assert.False(t, bob.IsActive)

	w = s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "bob", "password": "s3cretpass"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	token := s.activationToken(bob.ID.String())
	w = s.do(http.MethodPost, "/auth/activate/"+bob.ID.String()+"/garbage", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodPost, "/auth/activate/"+bob.ID.String()+"/"+token, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/auth/activate/"+bob.ID.String()+"/"+token, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "activation links are single use")

	bobToken := s.login("bob", "s3cretpass")

	w = s.do(http.MethodGet, "/me/dashboard", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"dashboard":"participant"}`, w.Body.String())

	// Participants can't manage the catalog.
	w = s.do(http.MethodPost, "/events", bobToken, map[string]interface{}{
		"name": "Bob's Party", "date": "2030-02-01", "time": "20:00", "location": "Home", "category_id": category.ID,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/admin/users", bobToken, nil).Code)

	// RSVP once, then the duplicate is rejected.
	rsvpPath := fmt.Sprintf("/events/%d/rsvp", event.ID)
	w = s.do(http.MethodGet, rsvpPath, bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"event_id":%d,"rsvped":false}`, event.ID), w.Body.String())
	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, rsvpPath, bobToken, nil).Code)
	w = s.do(http.MethodGet, rsvpPath, bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"event_id":%d,"rsvped":true}`, event.ID), w.Body.String())
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/events/9999/rsvp", bobToken, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, rsvpPath, "", nil).Code)
	w = s.do(http.MethodPost, rsvpPath, bobToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"You have already RSVP'd to this event"}`, w.Body.String())
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/events/9999/rsvp", bobToken, nil).Code)

	w = s.do(http.MethodGet, "/me/rsvps", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []models.Event
	decode(t, w, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, event.ID, mine[0].ID)

	w = s.do(http.MethodGet, fmt.Sprintf("/events/%d/participants", event.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var participants []models.User
	decode(t, w, &participants)
	require.Len(t, participants, 1)
	assert.Equal(t, "bob", participants[0].Username)

	var confirmations int64
	require.NoError(t, s.app.DB.Model(&models.Notification{}).
		Where("kind = ? AND user_id = ?", models.NotificationRSVPConfirmation, bob.ID).
		Count(&confirmations).Error)
	assert.Equal(t, int64(1), confirmations)

	// Promotion takes effect on bob's next request with the same session.
	w = s.do(http.MethodPost, "/admin/users/"+bob.ID.String()+"/role", adminToken, map[string]string{"role": "organizer"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var assigned struct {
		Roles []string `json:"roles"`
	}
	decode(t, w, &assigned)
	assert.Equal(t, []string{models.RoleOrganizer}, assigned.Roles)

	w = s.do(http.MethodPost, "/events", bobToken, map[string]interface{}{
		"name": "Bob's Party", "date": "2030-02-01", "time": "20:00", "location": "Home", "category_id": category.ID,
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/admin/users", bobToken, nil).Code)

	w = s.do(http.MethodGet, "/admin/users?role=organizer", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var organizers []struct {
		Username string   `json:"username"`
		Roles    []string `json:"roles"`
	}
	decode(t, w, &organizers)
	require.Len(t, organizers, 1)
	assert.Equal(t, "bob", organizers[0].Username)

	// Cancelling twice is fine.
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, rsvpPath, bobToken, nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, rsvpPath, bobToken, nil).Code)

	w = s.do(http.MethodGet, "/dashboard?type=upcoming", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dash struct {
		Counts struct {
			TotalEvents int64 `json:"total_events"`
			TotalRSVPs  int64 `json:"total_rsvps"`
		} `json:"counts"`
		Listing struct {
			Kind   string         `json:"kind"`
			Events []models.Event `json:"events"`
		} `json:"listing"`
	}
	decode(t, w, &dash)
	assert.Equal(t, int64(2), dash.Counts.TotalEvents)
	assert.Zero(t, dash.Counts.TotalRSVPs)
	assert.Equal(t, "upcoming", dash.Listing.Kind)
	assert.Len(t, dash.Listing.Events, 2)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/dashboard?type=archived", bobToken, nil).Code)

	// Deleting the category takes both events with it.
	w = s.do(http.MethodDelete, fmt.Sprintf("/categories/%d", category.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"events_deleted":2}`, w.Body.String())
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, fmt.Sprintf("/events/%d", event.ID), "", nil).Code)
}

func TestAdminRoleManagement(t *testing.T) {
	s := newTestServer(t)
	_, err := s.app.Directory.CreateAdmin(context.Background(), "root", "", "rootpass1")
	require.NoError(t, err)
	adminToken := s.login("root", "rootpass1")

	w := s.do(http.MethodPost, "/admin/roles", adminToken, map[string]interface{}{
		"name": "reviewer", "permissions": []string{models.PermViewEvent},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/admin/roles", adminToken, map[string]interface{}{
		"name": "bogus", "permissions": []string{"launch_rockets"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/admin/roles", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var roles []models.Role
	decode(t, w, &roles)
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"admin", "organizer", "reviewer", "user"}, names)

	w = s.do(http.MethodGet, "/admin/permissions", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var perms []models.Permission
	decode(t, w, &perms)
	assert.Len(t, perms, len(models.DefaultPermissions))

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/admin/users/00000000-0000-0000-0000-000000000001/role", adminToken,
		map[string]string{"role": "user"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/admin/users/not-a-uuid/role", adminToken,
		map[string]string{"role": "user"}).Code)

	w = s.do(http.MethodGet, "/admin/audit-logs", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
