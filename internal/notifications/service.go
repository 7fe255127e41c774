package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sirupsen/logrus"

	"github.com/joshuakim/propedge/internal/metrics"
	"github.com/joshuakim/propedge/internal/models"
	"github.com/joshuakim/propedge/internal/websocket"
)

// Config holds notification service configuration
type Config struct {
	// VAPID keys for Web Push
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string // mailto: or https:// URL

	// Batching
	BatchInterval time.Duration

	Enabled bool
}

// DefaultConfig returns default notification configuration
func DefaultConfig() Config {
	return Config{
		BatchInterval: 60 * time.Second,
		Enabled:       true,
	}
}

// Service batches lock alerts and dispatches them to push subscribers. Locks
// also go out immediately over the WebSocket hub.
type Service struct {
	config Config
	store  *SubscriptionStore
	hub    *websocket.Hub

	metrics *metrics.Metrics
	logger  *logrus.Logger

	mu           sync.Mutex
	pendingLocks []models.PropResult

	stopCh chan struct{}
}

// NewService creates a new notification service
func NewService(config Config, store *SubscriptionStore, hub *websocket.Hub, m *metrics.Metrics, logger *logrus.Logger) *Service {
	return &Service{
		config:       config,
		store:        store,
		hub:          hub,
		metrics:      m,
		logger:       logger,
		pendingLocks: make([]models.PropResult, 0),
		stopCh:       make(chan struct{}),
	}
}

// Start runs the batch processing loop until the context is cancelled or
// Stop is called. Remaining alerts are flushed on shutdown.
func (s *Service) Start(ctx context.Context) {
	if s.config.BatchInterval <= 0 {
		s.config.BatchInterval = 60 * time.Second
	}

	ticker := time.NewTicker(s.config.BatchInterval)
	defer ticker.Stop()

	s.logger.WithField("batch_interval", s.config.BatchInterval.String()).Info("Notification service started")

	for {
		select {
		case <-ctx.Done():
			s.processBatch()
			s.logger.Info("Notification service stopped")
			return
		case <-s.stopCh:
			s.processBatch()
			return
		case <-ticker.C:
			s.processBatch()
		}
	}
}

// Stop stops the notification service
func (s *Service) Stop() {
	close(s.stopCh)
}

// QueueLocks adds detected locks to the pending batch and broadcasts them to
// WebSocket subscribers right away.
func (s *Service) QueueLocks(locks []models.PropResult) {
	if !s.config.Enabled || len(locks) == 0 {
		return
	}

	s.mu.Lock()
	s.pendingLocks = append(s.pendingLocks, locks...)
	s.mu.Unlock()

	s.logger.WithField("count", len(locks)).Debug("Locks queued for push")

	if s.hub != nil {
		s.hub.BroadcastLocks(locks)
	}
}

// processBatch sends the pending locks as one push notification per
// subscriber.
func (s *Service) processBatch() {
	s.mu.Lock()
	if len(s.pendingLocks) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.pendingLocks
	s.pendingLocks = make([]models.PropResult, 0)
	s.mu.Unlock()

	if err := s.sendPush(batch); err != nil {
		s.logger.WithError(err).Warn("Failed to send push notification")
	}
}

// sendPush sends a batched push notification to every active subscription.
// Expired subscriptions (410/404) are pruned from the store.
func (s *Service) sendPush(batch []models.PropResult) error {
	if s.config.VAPIDPrivateKey == "" || s.config.VAPIDPublicKey == "" {
		s.logger.Debug("VAPID keys not configured - skipping push")
		return nil
	}

	subs := s.store.All()
	if len(subs) == 0 {
		return nil
	}

	payload := PushPayload{
		Title: s.formatTitle(batch),
		Body:  s.formatBody(batch),
		Icon:  "/icon-192.png",
		Badge: "/badge-72.png",
		Tag:   "lock-alerts",
		Data: PushData{
			URL:   "/",
			Locks: batch,
			Count: len(batch),
		},
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for i := range subs {
		sub := subs[i]
		resp, err := webpush.SendNotification(payloadJSON, &sub, &webpush.Options{
			Subscriber:      s.config.VAPIDSubject,
			VAPIDPublicKey:  s.config.VAPIDPublicKey,
			VAPIDPrivateKey: s.config.VAPIDPrivateKey,
			TTL:             3600, // 1 hour
		})
		if err != nil {
			s.metrics.PushFailed.Inc()
			s.logger.WithError(err).Debug("Push send failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 400 {
			s.metrics.PushFailed.Inc()
			if resp.StatusCode == 410 || resp.StatusCode == 404 {
				s.logger.Debug("Push subscription expired - removing")
				s.store.Remove(sub.Endpoint)
			}
			continue
		}
		s.metrics.PushSent.Inc()
	}

	s.logger.WithFields(logrus.Fields{
		"locks":       len(batch),
		"subscribers": len(subs),
	}).Info("Push notifications sent")
	return nil
}

// formatTitle creates the push notification title
func (s *Service) formatTitle(batch []models.PropResult) string {
	if len(batch) == 1 {
		return fmt.Sprintf("Lock Alert: %s %s", batch[0].Name, batch[0].Stat)
	}
	return fmt.Sprintf("%d Lock Alerts", len(batch))
}

// formatBody creates the push notification body
func (s *Service) formatBody(batch []models.PropResult) string {
	if len(batch) == 1 {
		a := batch[0]
		return fmt.Sprintf("%s %.1f (avg %.1f, edge %+.1f, conf %d)",
			a.Direction, a.Line, a.Avg, a.Edge, a.Confidence)
	}

	body := ""
	for i, a := range batch {
		if i >= 3 {
			break
		}
		if i > 0 {
			body += " | "
		}
		dir := "O"
		if a.Direction == models.DirectionUnder {
			dir = "U"
		}
		body += fmt.Sprintf("%s %s %.1f (%s)", a.Name, a.Stat, a.Line, dir)
	}

	if len(batch) > 3 {
		body += fmt.Sprintf(" +%d more", len(batch)-3)
	}
	return body
}

// GetVAPIDPublicKey returns the public key for client subscription
func (s *Service) GetVAPIDPublicKey() string {
	return s.config.VAPIDPublicKey
}

// PushPayload represents the push notification payload
type PushPayload struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Icon  string   `json:"icon,omitempty"`
	Badge string   `json:"badge,omitempty"`
	Tag   string   `json:"tag,omitempty"`
	Data  PushData `json:"data,omitempty"`
}

// PushData represents custom data in push notification
type PushData struct {
	URL   string              `json:"url,omitempty"`
	Locks []models.PropResult `json:"locks,omitempty"`
	Count int                 `json:"count"`
}
