package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"kbapi/internal/enrich"
	"kbapi/internal/http/middleware"
	"kbapi/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Handlers
// stay thin; all business rules live in the services.
func RegisterRoutes(
	app *fiber.App,
	db *sql.DB,
	authSvc service.AuthService,
	docSvc service.DocumentService,
	ratingSvc service.RatingService,
	enricher enrich.Enricher,
) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	auth := app.Group("/auth")
	auth.Post("/register", Register(authSvc))
	auth.Post("/login", Login(authSvc))

	authed := middleware.RequireAuth(authSvc)

	auth.Get("/me", authed, Me(authSvc))
	auth.Post("/logout", authed, Logout())

	docs := app.Group("/documents", authed)
	docs.Post("/upload", UploadDocument(docSvc))
	docs.Get("/", ListDocuments(docSvc))
	docs.Get("/latest", LatestDocuments(docSvc))
	docs.Get("/popular", PopularDocuments(docSvc))
	docs.Get("/my", MyDocuments(docSvc))
	docs.Get("/search", SearchDocuments(docSvc))
	docs.Get("/search/count", CountSearchDocuments(docSvc))
	docs.Get("/tags", DocumentTags(docSvc))
	docs.Get("/:id", GetDocument(docSvc))
	docs.Put("/:id", UpdateDocument(docSvc))
	docs.Delete("/:id", DeleteDocument(docSvc))
	docs.Get("/:id/download", DownloadDocument(docSvc))

	ratings := app.Group("/ratings", authed)
	ratings.Post("/documents/:id", SubmitRating(ratingSvc))
	ratings.Get("/documents/:id/my-rating", MyRating(ratingSvc))
	ratings.Delete("/documents/:id", RemoveRating(ratingSvc))

	ai := app.Group("/ai", authed)
	ai.Post("/analyze-file", AnalyzeFile(enricher))
	ai.Post("/generate-summary", GenerateSummary(enricher))
	ai.Post("/generate-tags", GenerateTags(enricher))
}
