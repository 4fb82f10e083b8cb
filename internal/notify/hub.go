package notify

import (
	"log/slog"
	"sync"
)

// Topic names. Offers go to every connected driver session; booking
// updates go to whoever watches that booking; driver topics carry
// addressed messages.
const TopicOffers = "rides.offers"

func BookingTopic(bookingID string) string { return "bookings." + bookingID }
func DriverTopic(driverID string) string   { return "drivers." + driverID }

// Sender is one connected session. Send must be safe for concurrent use.
type Sender interface {
	Send(v any) error
}

// Hub is an addressable publish/subscribe fan-out over live sessions.
// Delivery is best-effort: a subscriber that errors is dropped from the
// topic, and publishing to a topic with no subscribers is not an error.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[Sender]struct{}
	log  *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{subs: make(map[string]map[Sender]struct{}), log: log}
}

func (h *Hub) Subscribe(topic string, s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[Sender]struct{})
	}
	h.subs[topic][s] = struct{}{}
}

func (h *Hub) Unsubscribe(topic string, s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.subs[topic]; set != nil {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, topic)
		}
	}
}

// Publish sends payload to every current subscriber of topic and returns
// how many deliveries succeeded.
func (h *Hub) Publish(topic string, payload any) int {
	h.mu.RLock()
	targets := make([]Sender, 0, len(h.subs[topic]))
	for s := range h.subs[topic] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if err := s.Send(payload); err != nil {
			if h.log != nil {
				h.log.Warn("dropping dead subscriber", "topic", topic, "error", err)
			}
			h.Unsubscribe(topic, s)
			continue
		}
		delivered++
	}
	return delivered
}
