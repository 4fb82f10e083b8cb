package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

// HTTPNotifier forwards booking updates to the API process that owns the
// live sessions. The reconciler runs out of process, so it cannot publish
// into the hub directly; the durable write always lands first and this
// call stays best-effort.
type HTTPNotifier struct {
	Endpoint string // base URL of the API process
	Client   *http.Client
}

func NewHTTPNotifier(endpoint string) *HTTPNotifier {
	return &HTTPNotifier{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (n *HTTPNotifier) BookingUpdated(ctx context.Context, b *models.Booking) error {
	body, err := json.Marshal(models.NewBookingUpdate(*b))
	if err != nil {
		return err
	}
	url := n.Endpoint + "/internal/notify/bookings/" + b.ID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// HubNotifier publishes straight into an in-process hub. Used when the
// reconciler runs inside the API process.
type HubNotifier struct {
	Hub *Hub
}

func (n *HubNotifier) BookingUpdated(_ context.Context, b *models.Booking) error {
	n.Hub.Publish(BookingTopic(b.ID), models.NewBookingUpdate(*b))
	return nil
}
