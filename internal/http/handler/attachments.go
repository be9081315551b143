package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"clinicdocs/internal/service"
)

// UploadAttachment stores the multipart field "file" as a named attachment of a document.
//
// @Summary Upload attachment
// @Tags attachments
// @Accept multipart/form-data
// @Param collection path string true "Collection name"
// @Param id path string true "Document id"
// @Param name path string true "Attachment name"
// @Param file formData file true "Attachment content"
// @Success 201 {object} service.Attachment
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /collections/{collection}/{id}/attachments/{name} [put]
func UploadAttachment(svc service.AttachmentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		att, err := svc.Upload(c.UserContext(), param(c, "collection"), param(c, "id"), param(c, "name"), f, ct, fh.Size)
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(att)
	}
}

// DownloadAttachment streams a stored attachment.
//
// @Summary Download attachment
// @Tags attachments
// @Param collection path string true "Collection name"
// @Param id path string true "Document id"
// @Param name path string true "Attachment name"
// @Success 200 {file} file
// @Failure 404 {object} errorPayload
// @Router /collections/{collection}/{id}/attachments/{name} [get]
func DownloadAttachment(svc service.AttachmentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := param(c, "name")
		rc, att, err := svc.Open(c.UserContext(), param(c, "collection"), param(c, "id"), name)
		if err != nil {
			return writeStoreError(c, err)
		}

		ct := att.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		c.Set(fiber.HeaderContentType, ct)
		c.Set(fiber.HeaderContentDisposition, "attachment; filename="+strconv.Quote(name))

		size := int(att.Size)
		if size <= 0 {
			size = -1
		}
		// fasthttp closes rc once the body is written.
		return c.SendStream(rc, size)
	}
}
