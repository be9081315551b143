package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"clinicdocs/internal/model"
	"clinicdocs/internal/service"
)

// listResponse is the body of a collection listing.
type listResponse struct {
	Items []model.Document `json:"items"`
	Total int              `json:"total"`
}

// param copies a route parameter out of fasthttp's reusable buffer.
func param(c *fiber.Ctx, name string) string {
	return utils.CopyString(c.Params(name))
}

// decodeFields parses the request body as a JSON object, keeping numbers exact.
func decodeFields(c *fiber.Ctx) (model.Fields, bool) {
	fields, err := model.DecodeFields(c.Body())
	if err != nil {
		return nil, false
	}
	return fields, true
}

// ListDocuments returns every document of a collection, newest first.
//
// @Summary List documents
// @Tags documents
// @Param collection path string true "Collection name"
// @Success 200 {object} listResponse
// @Failure 400 {object} errorPayload
// @Router /collections/{collection} [get]
func ListDocuments(store service.DocumentStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		docs, err := store.List(c.UserContext(), param(c, "collection"))
		if err != nil {
			return writeStoreError(c, err)
		}
		if docs == nil {
			docs = []model.Document{}
		}
		return c.JSON(listResponse{Items: docs, Total: len(docs)})
	}
}

// CreateDocument stores the body under a generated id.
//
// @Summary Create document
// @Tags documents
// @Accept json
// @Param collection path string true "Collection name"
// @Success 201 {object} map[string]any
// @Failure 400 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Router /collections/{collection} [post]
func CreateDocument(store service.DocumentStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fields, ok := decodeFields(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAYLOAD", "body must be a JSON object")
		}
		doc, err := store.Create(c.UserContext(), param(c, "collection"), fields)
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// GetDocument reads one document.
//
// @Summary Get document
// @Tags documents
// @Param collection path string true "Collection name"
// @Param id path string true "Document id"
// @Success 200 {object} map[string]any
// @Failure 404 {object} errorPayload
// @Router /collections/{collection}/{id} [get]
func GetDocument(store service.DocumentStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		doc, err := store.Read(c.UserContext(), param(c, "collection"), param(c, "id"))
		if err != nil {
			return writeStoreError(c, err)
		}
		if doc == nil {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
		}
		return c.JSON(doc)
	}
}

// PutDocument creates or replaces a document.
//
// @Summary Write document
// @Tags documents
// @Accept json
// @Param collection path string true "Collection name"
// @Param id path string true "Document id"
// @Success 200 {object} map[string]any
// @Failure 400 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Router /collections/{collection}/{id} [put]
func PutDocument(store service.DocumentStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fields, ok := decodeFields(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAYLOAD", "body must be a JSON object")
		}
		doc, err := store.Write(c.UserContext(), param(c, "collection"), param(c, "id"), fields)
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.JSON(doc)
	}
}

// PatchDocument merges the body's top-level keys into an existing document.
//
// @Summary Patch document
// @Tags documents
// @Accept json
// @Param collection path string true "Collection name"
// @Param id path string true "Document id"
// @Success 200 {object} map[string]any
// @Failure 404 {object} errorPayload
// @Router /collections/{collection}/{id} [patch]
func PatchDocument(store service.DocumentStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fields, ok := decodeFields(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAYLOAD", "body must be a JSON object")
		}
		doc, err := store.Patch(c.UserContext(), param(c, "collection"), param(c, "id"), fields)
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.JSON(doc)
	}
}

// DeleteDocument removes or deactivates a document depending on its collection.
//
// @Summary Delete document
// @Tags documents
// @Param collection path string true "Collection name"
// @Param id path string true "Document id"
// @Success 204
// @Failure 404 {object} errorPayload
// @Router /collections/{collection}/{id} [delete]
func DeleteDocument(store service.DocumentStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := store.Remove(c.UserContext(), param(c, "collection"), param(c, "id")); err != nil {
			return writeStoreError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
