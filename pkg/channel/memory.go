package channel

import (
	"context"
	"errors"
	"sync"

	"github.com/absmach/fedtree/job"
)

var errAlreadyPublished = errors.New("variable already published to recipient")

// Hub is an in-process exchange shared by every participant of a job.
type Hub struct {
	mu    sync.Mutex
	slots map[string]chan []byte
}

func NewHub() *Hub {
	return &Hub{slots: make(map[string]chan []byte)}
}

func (h *Hub) Channel(jobID, self string) Channel {
	return &memoryChannel{hub: h, jobID: jobID, self: self}
}

// Factory adapts the hub to a channel Factory.
func (h *Hub) Factory() Factory {
	return func(_ context.Context, jobID, self string) (Channel, error) {
		return h.Channel(jobID, self), nil
	}
}

func (h *Hub) slot(key string) chan []byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.slots[key]
	if !ok {
		s = make(chan []byte, 1)
		h.slots[key] = s
	}

	return s
}

type memoryChannel struct {
	hub   *Hub
	jobID string
	self  string
}

func (c *memoryChannel) Publish(ctx context.Context, name string, value []byte, to []job.Participant) error {
	for _, p := range to {
		select {
		case c.hub.slot(c.key(name, c.self, p.UserID)) <- append([]byte(nil), value...):
		default:
			return wrap("publish", name, errAlreadyPublished)
		}
	}

	return nil
}

func (c *memoryChannel) Receive(ctx context.Context, name string, from job.Participant) ([]byte, error) {
	select {
	case v := <-c.hub.slot(c.key(name, from.UserID, c.self)):
		return v, nil
	case <-ctx.Done():
		return nil, wrap("receive", name, ctx.Err())
	}
}

func (c *memoryChannel) key(name, from, to string) string {
	return c.jobID + "/" + name + "/" + segment(from) + "/" + segment(to)
}
