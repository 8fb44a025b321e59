package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kbapi/internal/enrich"
	enrichMocks "kbapi/internal/enrich/mocks"
	"kbapi/internal/http/middleware"
	"kbapi/internal/model"
	"kbapi/internal/service"
	serviceMocks "kbapi/internal/service/mocks"
)

// withPrincipal injects an authenticated principal without a real token.
func withPrincipal(p model.Principal) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(middleware.PrincipalLocalKey, p)
		return c.Next()
	}
}

func newApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
}

func decodeError(t *testing.T, body io.Reader) errorPayload {
	t.Helper()
	var payload errorPayload
	require.NoError(t, json.NewDecoder(body).Decode(&payload))
	return payload
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp.Body).Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegister(t *testing.T) {
	mockAuth := new(serviceMocks.MockAuthService)
	app := newApp()
	app.Post("/auth/register", Register(mockAuth))

	t.Run("created", func(t *testing.T) {
		mockAuth.On("Register", mock.Anything, mock.Anything).
			Return(&model.User{ID: "user-1", Username: "alice"}, nil).Once()

		body := `{"username":"alice","email":"alice@example.com","password":"long enough"}`
		req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("validation error names the field", func(t *testing.T) {
		mockAuth.On("Register", mock.Anything, mock.Anything).
			Return(nil, model.NewValidationError("password", "must be at least 8 characters")).Once()

		req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"username":"x"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		payload := decodeError(t, resp.Body)
		assert.Equal(t, "VALIDATION_ERROR", payload.Error.Code)
		assert.Equal(t, "password", payload.Error.Field)
	})
}

func TestLogin(t *testing.T) {
	mockAuth := new(serviceMocks.MockAuthService)
	app := newApp()
	app.Post("/auth/login", Login(mockAuth))

	t.Run("wrong credentials", func(t *testing.T) {
		mockAuth.On("Login", mock.Anything, "alice", "wrong").
			Return(nil, service.ErrInvalidCredentials).Once()

		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"alice","password":"wrong"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "INVALID_CREDENTIALS", decodeError(t, resp.Body).Error.Code)
	})

	t.Run("success returns the token", func(t *testing.T) {
		mockAuth.On("Login", mock.Anything, "alice", "right").
			Return(&service.LoginResult{Token: "jwt-token", User: &model.User{ID: "user-1"}}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"alice","password":"right"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "jwt-token", body["access_token"])
	})
}

func TestRequireAuth(t *testing.T) {
	mockAuth := new(serviceMocks.MockAuthService)
	app := newApp()
	app.Get("/protected", middleware.RequireAuth(mockAuth), func(c *fiber.Ctx) error {
		p, _ := middleware.PrincipalFromCtx(c)
		return c.JSON(p)
	})

	t.Run("missing token", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/protected", nil))

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("invalid token", func(t *testing.T) {
		mockAuth.On("ValidateToken", "bad").Return(nil, errors.New("expired")).Once()

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer bad")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid token exposes the principal", func(t *testing.T) {
		claims := &service.Claims{Group: "eng"}
		claims.Subject = "user-1"
		mockAuth.On("ValidateToken", "good").Return(claims, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer good")
		resp, _ := app.Test(req)

		require.Equal(t, http.StatusOK, resp.StatusCode)
		var p model.Principal
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
		assert.Equal(t, "user-1", p.ID)
		assert.Equal(t, "eng", p.Group)
	})
}

func TestGetDocument(t *testing.T) {
	viewer := model.Principal{ID: "user-1", Group: "eng"}
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp()
	app.Get("/documents/:id", withPrincipal(viewer), GetDocument(mockSvc))

	id := uuid.New().String()

	t.Run("ok", func(t *testing.T) {
		mockSvc.On("Get", mock.Anything, viewer, id).
			Return(&model.DocumentView{Document: model.Document{ID: id, Title: "Doc"}, OwnerName: "Alice A"}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Alice A", body["owner_name"])
	})

	t.Run("forbidden", func(t *testing.T) {
		mockSvc.On("Get", mock.Anything, viewer, id).Return(nil, model.ErrForbidden).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Get", mock.Anything, viewer, id).Return(nil, model.ErrNotFound).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestUploadDocument(t *testing.T) {
	owner := model.Principal{ID: "user-1"}
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp()
	app.Post("/documents/upload", withPrincipal(owner), UploadDocument(mockSvc))

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "report.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-"))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("title", "Quarterly report"))
	require.NoError(t, w.WriteField("visibility", "group"))
	require.NoError(t, w.WriteField("tags", "finance,q3"))
	require.NoError(t, w.Close())

	mockSvc.On("Upload", mock.Anything, owner, mock.MatchedBy(func(in service.UploadInput) bool {
		return in.Filename == "report.pdf" &&
			in.Title == "Quarterly report" &&
			in.Visibility == "group" &&
			in.Tags == "finance,q3"
	})).Return(&model.Document{ID: "doc-1"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/documents/upload", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	mockSvc.AssertExpectations(t)
}

func TestSearchDocuments(t *testing.T) {
	viewer := model.Principal{ID: "user-1"}
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp()
	app.Get("/documents/search", withPrincipal(viewer), SearchDocuments(mockSvc))

	t.Run("passes query parameters through", func(t *testing.T) {
		mockSvc.On("Search", mock.Anything, viewer, mock.MatchedBy(func(in service.SearchInput) bool {
			return in.Query == "report" && in.Tags == "finance" && in.SortBy == "title" &&
				in.Order == "asc" && in.Page == 2 && in.Limit == 20
		})).Return(&service.DocumentPage{Items: []model.DocumentView{}, Page: 2, Limit: 20}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet,
			"/documents/search?q=report&tags=finance&sort_by=title&order=asc&page=2&limit=20", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("malformed date bubbles up as validation error", func(t *testing.T) {
		mockSvc.On("Search", mock.Anything, viewer, mock.Anything).
			Return(nil, model.NewValidationError("date_from", "invalid date format")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/search?date_from=garbage", nil))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "date_from", decodeError(t, resp.Body).Error.Field)
	})

	t.Run("non-integer page", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/search?page=two", nil))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "page", decodeError(t, resp.Body).Error.Field)
	})
}

func TestDocumentTags(t *testing.T) {
	viewer := model.Principal{ID: "user-1"}
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp()
	app.Get("/documents/tags", withPrincipal(viewer), DocumentTags(mockSvc))

	mockSvc.On("TagCensus", mock.Anything, viewer, 50).
		Return([]model.TagCount{{Tag: "go", Count: 7}}, nil).Once()

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/tags", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Data []model.TagCount `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []model.TagCount{{Tag: "go", Count: 7}}, body.Data)
}

func TestSubmitRating(t *testing.T) {
	rater := model.Principal{ID: "rater"}
	mockSvc := new(serviceMocks.MockRatingService)
	app := newApp()
	app.Post("/ratings/documents/:id", withPrincipal(rater), SubmitRating(mockSvc))

	id := uuid.New().String()

	t.Run("created", func(t *testing.T) {
		mockSvc.On("Submit", mock.Anything, rater, id, 4).
			Return(&service.RatingResult{DocumentID: id, Value: 4, Created: true, RatingCount: 1, AverageRating: 4}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/ratings/documents/"+id, strings.NewReader(`{"value":4}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("re-rating returns 200", func(t *testing.T) {
		mockSvc.On("Submit", mock.Anything, rater, id, 2).
			Return(&service.RatingResult{DocumentID: id, Value: 2, Created: false, RatingCount: 1, AverageRating: 2}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/ratings/documents/"+id, strings.NewReader(`{"value":2}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("out of range value", func(t *testing.T) {
		mockSvc.On("Submit", mock.Anything, rater, id, 9).
			Return(nil, model.NewValidationError("value", "must be between 1 and 5")).Once()

		req := httptest.NewRequest(http.MethodPost, "/ratings/documents/"+id, strings.NewReader(`{"value":9}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestMyRating(t *testing.T) {
	rater := model.Principal{ID: "rater"}
	mockSvc := new(serviceMocks.MockRatingService)
	app := newApp()
	app.Get("/ratings/documents/:id/my-rating", withPrincipal(rater), MyRating(mockSvc))

	id := uuid.New().String()
	mockSvc.On("MyRating", mock.Anything, rater, id).Return(nil, nil).Once()

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/ratings/documents/"+id+"/my-rating", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Nil(t, body["rating"])
}

func TestRemoveRating(t *testing.T) {
	rater := model.Principal{ID: "rater"}
	mockSvc := new(serviceMocks.MockRatingService)
	app := newApp()
	app.Delete("/ratings/documents/:id", withPrincipal(rater), RemoveRating(mockSvc))

	id := uuid.New().String()

	t.Run("removed", func(t *testing.T) {
		mockSvc.On("Remove", mock.Anything, rater, id).Return(nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/ratings/documents/"+id, nil))

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("never rated", func(t *testing.T) {
		mockSvc.On("Remove", mock.Anything, rater, id).Return(model.ErrNotFound).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/ratings/documents/"+id, nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestGenerateSummary(t *testing.T) {
	caller := model.Principal{ID: "user-1"}
	mockEnricher := new(enrichMocks.MockEnricher)
	app := newApp()
	app.Post("/ai/generate-summary", withPrincipal(caller), GenerateSummary(mockEnricher))

	mockEnricher.On("GenerateSummary", mock.Anything, "long document text").
		Return("short summary", nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/ai/generate-summary", strings.NewReader(`{"text":"long document text"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "short summary", body["summary"])
}

func TestAnalyzeFile(t *testing.T) {
	caller := model.Principal{ID: "user-1"}
	mockEnricher := new(enrichMocks.MockEnricher)
	app := newApp()
	app.Post("/ai/analyze-file", withPrincipal(caller), AnalyzeFile(mockEnricher))

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "notes.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	mockEnricher.On("AnalyzeFile", mock.Anything, mock.Anything, "notes.pdf", mock.Anything).
		Return(&enrich.Analysis{Summary: "sum", Tags: []string{"go"}, Preview: "text"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/ai/analyze-file", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body enrich.Analysis
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "sum", body.Summary)
}
