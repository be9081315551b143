package handler

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"clinicdocs/internal/model"
	"clinicdocs/internal/service"
)

type batchOpRequest struct {
	Op         service.BatchOpKind `json:"op"`
	Collection string              `json:"collection"`
	ID         string              `json:"id"`
	Data       model.Fields        `json:"data"`
}

type batchRequest struct {
	Ops []batchOpRequest `json:"ops"`
}

// CommitBatch applies the queued operations in order. Operations are not atomic: the
// response lists each one as applied, failed or skipped and is 207 when any did not apply.
//
// @Summary Commit batch
// @Tags documents
// @Accept json
// @Success 200 {object} service.BatchResult
// @Success 207 {object} service.BatchResult
// @Failure 400 {object} errorPayload
// @Router /batch [post]
func CommitBatch(store service.DocumentStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req batchRequest
		dec := json.NewDecoder(bytes.NewReader(c.Body()))
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAYLOAD", "body must be a batch object")
		}

		b := service.NewBatch(store)
		for _, op := range req.Ops {
			switch op.Op {
			case service.BatchSet:
				b.Set(op.Collection, op.ID, op.Data)
			case service.BatchUpdate:
				b.Update(op.Collection, op.ID, op.Data)
			case service.BatchDelete:
				b.Delete(op.Collection, op.ID)
			default:
				return writeError(c, fiber.StatusBadRequest, "INVALID_PAYLOAD", "unknown batch op")
			}
		}

		res, err := b.Commit(c.UserContext())
		if err != nil {
			var batchErr *service.BatchError
			if !errors.As(err, &batchErr) {
				return writeStoreError(c, err)
			}
			return c.Status(fiber.StatusMultiStatus).JSON(res)
		}
		return c.JSON(res)
	}
}
