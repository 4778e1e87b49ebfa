package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"civreg/internal/event"
	"civreg/internal/event/authz"
	"civreg/internal/event/service"
	"civreg/internal/event/store/record"
	"civreg/internal/index"
	"civreg/internal/location"
	"civreg/internal/regnumber"
	"civreg/internal/token"
	"civreg/pkg/requestcontext"
)

// HandlerSuite drives the API end to end: real router, middleware chain,
// token validation, service and memory stores.
type HandlerSuite struct {
	suite.Suite

	server *httptest.Server
	jwt    *token.JWTService
	index  *index.Service
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.Default()
	locations := location.NewInMemory(
		location.Location{ID: "loc-district", Kind: location.KindDistrict, Code: "10"},
		location.Location{ID: "loc-office", Kind: location.KindOffice, PartOf: "loc-district"},
	)

	indexSvc := index.NewService(index.NewInMemory(), logger)
	svc := service.NewService(
		record.NewInMemory(),
		authz.NewResolver(authz.DefaultConfig()),
		regnumber.NewGenerator(locations),
		service.WithIndexer(indexSvc),
	)

	s.jwt = token.NewJWTService("test-signing-key", "civreg", "civreg")
	s.index = indexSvc

	r := chi.NewRouter()
	New(svc, indexSvc, s.jwt, logger).Register(r)
	s.server = httptest.NewServer(r)
}

func (s *HandlerSuite) TearDownTest() {
	s.server.Close()
}

func (s *HandlerSuite) tokenFor(caller requestcontext.CallerInfo) string {
	tok, err := s.jwt.GenerateAccessToken(caller, time.Hour)
	s.Require().NoError(err)
	return tok
}

func (s *HandlerSuite) registrarToken() string {
	return s.tokenFor(requestcontext.CallerInfo{
		UserID:         "user-registrar",
		Role:           "LOCAL_REGISTRAR",
		UserType:       requestcontext.UserTypeUser,
		Scopes:         []string{authz.ScopeDeclare, authz.ScopeValidate, authz.ScopeRegister, authz.ScopeAssign},
		OfficeLocation: "loc-office",
	})
}

func (s *HandlerSuite) do(method, path, bearer string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *HandlerSuite) decode(resp *http.Response, v any) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(v))
}

func (s *HandlerSuite) TestCreateRequiresAuth() {
	resp := s.do(http.MethodPost, "/api/events", "", map[string]string{"type": "birth"})
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *HandlerSuite) TestCreateAndFetch() {
	bearer := s.registrarToken()

	resp := s.do(http.MethodPost, "/api/events", bearer, map[string]any{
		"type":        "birth",
		"declaration": map[string]any{"child.name": "Anik"},
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var created event.EventDocument
	s.decode(resp, &created)
	s.NotEmpty(created.ID)
	s.NotEmpty(created.TrackingID)

	resp = s.do(http.MethodGet, "/api/events/"+created.ID, bearer, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var fetched event.EventDocument
	s.decode(resp, &fetched)
	s.Equal(created.TrackingID, fetched.TrackingID)
	s.Len(fetched.Actions, 1)
}

func (s *HandlerSuite) TestActionLifecycleOverHTTP() {
	bearer := s.registrarToken()

	resp := s.do(http.MethodPost, "/api/events", bearer, map[string]string{"type": "birth"})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var doc event.EventDocument
	s.decode(resp, &doc)

	for _, actionType := range []string{"ASSIGN", "DECLARE", "VALIDATE", "REGISTER"} {
		resp = s.do(http.MethodPost, fmt.Sprintf("/api/events/%s/actions", doc.ID), bearer,
			map[string]string{"type": actionType})
		s.Require().Equal(http.StatusOK, resp.StatusCode, "action %s", actionType)
		s.decode(resp, &doc)
	}

	s.NotEmpty(doc.RegistrationNumber)
	s.Equal(event.StatusRegistered, event.Project(doc.Actions).Status)
}

func (s *HandlerSuite) TestActionForbiddenWithoutScope() {
	bearer := s.registrarToken()
	resp := s.do(http.MethodPost, "/api/events", bearer, map[string]string{"type": "birth"})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var doc event.EventDocument
	s.decode(resp, &doc)

	limited := s.tokenFor(requestcontext.CallerInfo{
		UserID:   "user-agent",
		UserType: requestcontext.UserTypeUser,
		Scopes:   []string{authz.ScopeRead},
	})
	resp = s.do(http.MethodPost, fmt.Sprintf("/api/events/%s/actions", doc.ID), limited,
		map[string]string{"type": "DECLARE"})
	defer resp.Body.Close()
	s.Equal(http.StatusForbidden, resp.StatusCode)
}

func (s *HandlerSuite) TestMenuEndpoint() {
	bearer := s.registrarToken()
	resp := s.do(http.MethodPost, "/api/events", bearer, map[string]string{"type": "birth"})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var doc event.EventDocument
	s.decode(resp, &doc)

	resp = s.do(http.MethodGet, fmt.Sprintf("/api/events/%s/actions", doc.ID), bearer, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var menu struct {
		Enabled  []string `json:"enabled"`
		Disabled []string `json:"disabled"`
	}
	s.decode(resp, &menu)
	s.Contains(menu.Enabled, "READ")
	s.Contains(menu.Enabled, "ASSIGN")
	// Unassigned record: lifecycle actions are visible but disabled.
	s.Contains(menu.Disabled, "DECLARE")
}

func (s *HandlerSuite) TestSearchListsIndexedRecords() {
	bearer := s.registrarToken()
	resp := s.do(http.MethodPost, "/api/events", bearer, map[string]string{"type": "birth"})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var doc event.EventDocument
	s.decode(resp, &doc)

	resp = s.do(http.MethodGet, "/api/events?type=birth", bearer, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var results []event.EventIndex
	s.decode(resp, &results)
	s.Require().Len(results, 1)
	s.Equal(doc.ID, results[0].ID)
	s.Equal(event.StatusCreated, results[0].Status)
}

func (s *HandlerSuite) TestRejectsNonJSONBody() {
	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/api/events", bytes.NewBufferString("type=birth"))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.registrarToken())

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusUnsupportedMediaType, resp.StatusCode)
}
