package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"dropshop/internal/domain"
	"dropshop/internal/events"
	"dropshop/internal/services"
)

type EventsHandler struct {
	Bus   *events.Bus
	Drops *services.DropService
}

// GET /api/drop/events. Server-sent inventory snapshots for storefront
// live updates. Slow clients drop events rather than back-pressuring the
// engine; each snapshot is complete so a dropped one is harmless.
func (h *EventsHandler) Stream(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	ch := make(chan events.InventoryEvent, 16)
	sub := h.Bus.Subscribe(events.TopicInventory, func(p any) {
		ev, ok := p.(events.InventoryEvent)
		if !ok {
			return
		}
		select {
		case ch <- ev:
		default:
		}
	})

	initial := events.InventoryEvent{Remaining: h.Drops.Remaining()}
	if d := h.Drops.Current(); d != nil {
		initial.DropID = d.ID
		initial.Live = d.Status == domain.DropLive
	}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer sub.Cancel()
		writeSSE(w, initial)
		if w.Flush() != nil {
			return
		}
		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()
		for {
			select {
			case ev := <-ch:
				writeSSE(w, ev)
			case <-keepalive.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			if err := w.Flush(); err != nil {
				return // client gone
			}
		}
	})
	return nil
}

func writeSSE(w *bufio.Writer, ev events.InventoryEvent) {
	b, _ := json.Marshal(ev)
	fmt.Fprintf(w, "event: inventory\ndata: %s\n\n", b)
}
