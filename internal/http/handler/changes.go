package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"clinicdocs/internal/changefeed"
	"clinicdocs/internal/service"
)

// keepAliveInterval is how often an idle stream sends an SSE comment line.
var keepAliveInterval = 15 * time.Second

// StreamChanges streams a collection's changes as server-sent events, one
// "event: <type>" frame per change, until the client disconnects.
//
// @Summary Stream collection changes
// @Tags changes
// @Produce text/event-stream
// @Param collection path string true "Collection name"
// @Success 200 {string} string
// @Failure 503 {object} errorPayload
// @Router /changes/{collection} [get]
func StreamChanges(store service.DocumentStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// The stream outlives the handler, so it cannot use the request context.
		ctx, cancel := context.WithCancel(context.Background())
		changes, err := store.Listen(ctx, param(c, "collection"))
		if err != nil {
			cancel()
			return writeStoreError(c, err)
		}

		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer cancel()
			writeChanges(w, changes)
		}))
		return nil
	}
}

// writeChanges pumps changes into w until the channel closes or a flush fails.
func writeChanges(w *bufio.Writer, changes <-chan changefeed.Change) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case change, ok := <-changes:
			if !ok {
				return
			}
			b, err := json.Marshal(change)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", change.Type, b)
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}
