package notifications

import (
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// SubscriptionStore keeps browser push subscriptions in memory, keyed by
// endpoint. Subscriptions do not survive a restart; clients re-subscribe on
// page load.
type SubscriptionStore struct {
	mu   sync.RWMutex
	subs map[string]webpush.Subscription
}

// NewSubscriptionStore creates an empty store.
func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{subs: make(map[string]webpush.Subscription)}
}

// Add registers or replaces a subscription.
func (s *SubscriptionStore) Add(sub webpush.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.Endpoint] = sub
}

// Remove drops a subscription by endpoint.
func (s *SubscriptionStore) Remove(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, endpoint)
}

// All returns a snapshot of the current subscriptions.
func (s *SubscriptionStore) All() []webpush.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]webpush.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out
}

// Count returns the number of active subscriptions.
func (s *SubscriptionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
