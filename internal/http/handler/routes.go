package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"clinicdocs/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// attachments may be nil when no object storage is configured.
func RegisterRoutes(app *fiber.App, db *sql.DB, store service.DocumentStore, attachments service.AttachmentService) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Get("/collections/:collection", ListDocuments(store))
	app.Post("/collections/:collection", CreateDocument(store))
	app.Get("/collections/:collection/:id", GetDocument(store))
	app.Put("/collections/:collection/:id", PutDocument(store))
	app.Patch("/collections/:collection/:id", PatchDocument(store))
	app.Delete("/collections/:collection/:id", DeleteDocument(store))

	if attachments != nil {
		app.Put("/collections/:collection/:id/attachments/:name", UploadAttachment(attachments))
		app.Get("/collections/:collection/:id/attachments/:name", DownloadAttachment(attachments))
	}

	app.Post("/batch", CommitBatch(store))
	app.Get("/changes/:collection", StreamChanges(store))
}
