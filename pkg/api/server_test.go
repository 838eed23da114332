package api

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/huddlehq/huddle/pkg/auth"
	"github.com/huddlehq/huddle/pkg/communities"
	"github.com/huddlehq/huddle/pkg/middleware"
	"github.com/huddlehq/huddle/pkg/observability"
	"github.com/huddlehq/huddle/pkg/projects"
)

type fakeProjectService struct {
	project *projects.Project
	err     error
}

func (f *fakeProjectService) CreateProject(actor auth.Actor, communityID int64, req projects.CreateProjectRequest) (*projects.Project, error) {
	return f.project, f.err
}

func (f *fakeProjectService) GetProject(actor auth.Actor, communityID, projectID int64) (*projects.Project, error) {
	return f.project, f.err
}

func (f *fakeProjectService) ListProjects(actor auth.Actor, communityID int64) ([]*projects.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []*projects.Project{f.project}, nil
}

func (f *fakeProjectService) UpdateProject(actor auth.Actor, communityID, projectID int64, req projects.UpdateProjectRequest) (*projects.Project, error) {
	return f.project, f.err
}

func (f *fakeProjectService) DeleteProject(actor auth.Actor, communityID, projectID int64) error {
	return f.err
}

var _ projects.Service = (*fakeProjectService)(nil)

type fakeTokenResolver struct {
	user *auth.User
}

func (f *fakeTokenResolver) ResolveToken(token string) (*auth.User, error) {
	if f.user == nil || token != "hud_good" {
		return nil, errors.New("invalid token")
	}
	return f.user, nil
}

func newTestServer() *Server {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewServer(ServerOptions{
		Communities: &fakeCommunityService{community: &communities.Community{ID: 10, Name: "gophers"}},
		Projects:    &fakeProjectService{project: &projects.Project{ID: 5, Name: "Backend"}},
		Tasks:       &fakeTaskService{},
		Auth:        middleware.NewAuthMiddleware(&fakeTokenResolver{user: &auth.User{ID: 1}}),
		Logger:      logger,
		Metrics:     observability.NewMetrics(prometheus.NewRegistry()),
	})
}

func TestServerRequiresAuth(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest("GET", "/communities", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServerAuthenticatedRequest(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest("GET", "/communities", nil)
	req.Header.Set("Authorization", "Bearer hud_good")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gophers")
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestServerRoutesProjects(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest("GET", "/communities/10/projects", nil)
	req.Header.Set("Authorization", "Bearer hud_good")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Backend")
}
