package httptransport

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"healthpass/internal/documents/models"
	"healthpass/internal/platform/logger"
	"healthpass/internal/platform/metrics"
	"healthpass/internal/profile"
	"healthpass/internal/transport/http/mocks"
	dErrors "healthpass/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks
type HandlerSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	documents   *mocks.MockDocumentService
	revalidator *mocks.MockRevalidator
	profiles    *mocks.MockProfileService
	router      http.Handler
	test        *models.CoronaTest
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.documents = mocks.NewMockDocumentService(s.ctrl)
	s.revalidator = mocks.NewMockRevalidator(s.ctrl)
	s.profiles = mocks.NewMockProfileService(s.ctrl)
	reg := prometheus.NewRegistry()
	h := New(s.documents, s.revalidator, s.profiles)
	s.router = NewRouter(h, logger.Discard(), metrics.New(reg), reg, map[string]HealthCheck{
		"store": func(*http.Request) error { return nil },
	})
	s.test = &models.CoronaTest{
		Envelope:   models.NewEnvelope("code"),
		Date:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		TestType:   models.TestTypePCR,
		Negative:   true,
		Laboratory: "Central Lab",
		IssuedBy:   "Central Lab GmbH",
	}
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) decode(w *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (s *HandlerSuite) TestIngest() {
	s.Run("created", func() {
		s.documents.EXPECT().Ingest(gomock.Any(), "code").Return(s.test, nil)
		w := s.do(http.MethodPost, "/documents", `{"code":"code"}`)
		s.Equal(http.StatusCreated, w.Code)

		var got documentResponse
		s.decode(w, &got)
		s.Equal(s.test.ID().String(), got.ID)
		s.Equal("corona_test", got.Kind)
		s.Equal("Central Lab GmbH", got.IssuedBy)
		s.Equal(s.test.ExpiresAt(), got.ExpiresAt)
		s.Equal("pcr", got.Details["test_type"])
		s.NotEmpty(w.Header().Get("X-Request-ID"))
	})

	s.Run("taxonomy errors carry title and description", func() {
		s.documents.EXPECT().Ingest(gomock.Any(), "code").
			Return(nil, dErrors.New(dErrors.CodeNameValidationFailed, "the document belongs to someone else"))
		w := s.do(http.MethodPost, "/documents", `{"code":"code"}`)
		s.Equal(http.StatusUnprocessableEntity, w.Code)

		var body map[string]string
		s.decode(w, &body)
		s.Equal("name_validation_failed", body["error"])
		s.Equal("Name does not match", body["error_title"])
		s.Equal("the document belongs to someone else", body["error_description"])
	})

	s.Run("already redeemed is a conflict", func() {
		s.documents.EXPECT().Ingest(gomock.Any(), "code").
			Return(nil, dErrors.New(dErrors.CodeAlreadyRedeemed, "in use"))
		w := s.do(http.MethodPost, "/documents", `{"code":"code"}`)
		s.Equal(http.StatusConflict, w.Code)
	})

	s.Run("bad bodies never reach the service", func() {
		for _, body := range []string{`{bad`, `{"code":""}`, `{"code":"x","extra":1}`} {
			w := s.do(http.MethodPost, "/documents", body)
			s.Equal(http.StatusBadRequest, w.Code, body)
		}
	})
}

func (s *HandlerSuite) TestListAndRemove() {
	s.documents.EXPECT().List(gomock.Any()).Return([]models.Document{s.test}, nil)
	w := s.do(http.MethodGet, "/documents", "")
	s.Equal(http.StatusOK, w.Code)
	var got documentsResponse
	s.decode(w, &got)
	s.Require().Len(got.Documents, 1)

	s.documents.EXPECT().Remove(gomock.Any(), s.test.ID()).Return(nil)
	w = s.do(http.MethodDelete, "/documents/"+s.test.ID().String(), "")
	s.Equal(http.StatusNoContent, w.Code)

	w = s.do(http.MethodDelete, "/documents/not-a-number", "")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestRevalidate() {
	s.revalidator.EXPECT().RevalidateIfNeeded(gomock.Any()).Return(0, nil)
	w := s.do(http.MethodPost, "/documents/revalidate", "")
	s.Equal(http.StatusOK, w.Code)

	s.revalidator.EXPECT().Revalidate(gomock.Any()).Return(2, nil)
	w = s.do(http.MethodPost, "/documents/revalidate?force=true", "")
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"removed":2}`, w.Body.String())
}

func (s *HandlerSuite) TestDeleteAccount() {
	s.documents.EXPECT().DeleteAccount(gomock.Any()).Return(dErrors.New(dErrors.CodeUnavailable, "backend down"))
	w := s.do(http.MethodDelete, "/account", "")
	s.Equal(http.StatusServiceUnavailable, w.Code)

	s.documents.EXPECT().DeleteAccount(gomock.Any()).Return(nil)
	w = s.do(http.MethodDelete, "/account", "")
	s.Equal(http.StatusNoContent, w.Code)
}

func (s *HandlerSuite) TestProfile() {
	owner := profile.Person{ID: uuid.New(), FirstName: "Anna", LastName: "Berg"}
	child := profile.Person{
		ID: uuid.New(), FirstName: "Mia", LastName: "Berg",
		DateOfBirth: time.Date(2018, 6, 30, 0, 0, 0, 0, time.UTC),
	}

	s.Run("set owner", func() {
		s.profiles.EXPECT().SetOwner(gomock.Any(), profile.Person{FirstName: "Anna", LastName: "Berg"}).Return(owner, nil)
		w := s.do(http.MethodPut, "/profile/owner", `{"first_name":"Anna","last_name":"Berg"}`)
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("add child parses the birth date", func() {
		s.profiles.EXPECT().AddChild(gomock.Any(), profile.Person{
			FirstName: "Mia", LastName: "Berg", DateOfBirth: child.DateOfBirth,
		}).Return(child, nil)
		w := s.do(http.MethodPost, "/profile/children", `{"first_name":"Mia","last_name":"Berg","date_of_birth":"2018-06-30"}`)
		s.Equal(http.StatusCreated, w.Code)

		w = s.do(http.MethodPost, "/profile/children", `{"first_name":"Mia","last_name":"Berg","date_of_birth":"30.06.2018"}`)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("get", func() {
		s.profiles.EXPECT().Owner(gomock.Any()).Return(owner, true, nil)
		s.profiles.EXPECT().Children(gomock.Any()).Return([]profile.Person{child}, nil)
		w := s.do(http.MethodGet, "/profile", "")
		s.Equal(http.StatusOK, w.Code)

		var got profileResponse
		s.decode(w, &got)
		s.Require().NotNil(got.Owner)
		s.Equal("Anna", got.Owner.FirstName)
		s.Require().Len(got.Children, 1)
		s.Equal("2018-06-30", got.Children[0].DateOfBirth)
	})

	s.Run("remove child", func() {
		s.profiles.EXPECT().RemoveChild(gomock.Any(), child.ID).Return(dErrors.New(dErrors.CodeNotFound, "child profile not found"))
		w := s.do(http.MethodDelete, "/profile/children/"+child.ID.String(), "")
		s.Equal(http.StatusNotFound, w.Code)

		w = s.do(http.MethodDelete, "/profile/children/nope", "")
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *HandlerSuite) TestStream() {
	feed := make(chan []models.Document, 2)
	feed <- nil
	feed <- []models.Document{s.test}
	close(feed)
	s.documents.EXPECT().Feed(gomock.Any()).Return((<-chan []models.Document)(feed))

	srv := httptest.NewServer(s.router)
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/documents/stream", nil)
	s.Require().NoError(err)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal("text/event-stream", resp.Header.Get("Content-Type"))

	var events []documentsResponse
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var ev documentsResponse
			s.Require().NoError(json.Unmarshal([]byte(data), &ev))
			events = append(events, ev)
		}
	}
	s.Require().Len(events, 2)
	s.Empty(events[0].Documents)
	s.Len(events[1].Documents, 1)
}

func (s *HandlerSuite) TestOperationalRoutes() {
	w := s.do(http.MethodGet, "/healthz", "")
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"store":"ok"}`, w.Body.String())

	w = s.do(http.MethodGet, "/metrics", "")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "healthpass_http_request_duration_seconds")
}
