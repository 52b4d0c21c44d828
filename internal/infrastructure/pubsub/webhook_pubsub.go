package pubsub

import (
	"context"
	"slices"
	"strconv"
	"sync"

	"helpdesk-integration-layer/internal/domain"

	"github.com/rs/zerolog"
)

const subscriptionBuffer = 10

// Subscription receives events until its context ends
type Subscription struct {
	ID     string
	Filter *WebhookEventFilter
	Events chan *domain.WebhookEvent
	Done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// WebhookEventFilter narrows a subscription. Shops restricts events to the subscriber's own stores;
// a nil Shops accepts every shop, an empty one accepts none.
type WebhookEventFilter struct {
	Topics []string
	Shops  []string
}

func (f *WebhookEventFilter) accepts(event *domain.WebhookEvent) bool {
	if f == nil {
		return true
	}
	if len(f.Topics) > 0 && !slices.Contains(f.Topics, event.Topic) {
		return false
	}
	return f.Shops == nil || slices.Contains(f.Shops, event.Shop)
}

// WebhookPubSub fans verified webhook events out to in-process subscribers
type WebhookPubSub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	seq    int64
	logger zerolog.Logger
}

func NewWebhookPubSub(logger zerolog.Logger) *WebhookPubSub {
	return &WebhookPubSub{
		subs:   make(map[string]*Subscription),
		logger: logger,
	}
}

// Subscribe registers a subscription that is removed when ctx ends
func (ps *WebhookPubSub) Subscribe(ctx context.Context, filter *WebhookEventFilter) *Subscription {
	subCtx, cancel := context.WithCancel(ctx)

	ps.mu.Lock()
	ps.seq++
	sub := &Subscription{
		ID:     "sub-" + strconv.FormatInt(ps.seq, 10),
		Filter: filter,
		Events: make(chan *domain.WebhookEvent, subscriptionBuffer),
		Done:   make(chan struct{}),
		ctx:    subCtx,
		cancel: cancel,
	}
	ps.subs[sub.ID] = sub
	ps.mu.Unlock()

	shops := 0
	if filter != nil {
		shops = len(filter.Shops)
	}
	ps.logger.Debug().Str("subscriptionId", sub.ID).Int("shops", shops).Msg("Event subscription opened")

	go func() {
		<-subCtx.Done()
		ps.Unsubscribe(sub.ID)
	}()
	return sub
}

// Unsubscribe closes the subscription; unknown ids are ignored
func (ps *WebhookPubSub) Unsubscribe(id string) {
	ps.mu.Lock()
	sub, ok := ps.subs[id]
	if ok {
		delete(ps.subs, id)
		close(sub.Events)
		close(sub.Done)
	}
	ps.mu.Unlock()

	if !ok {
		return
	}
	sub.cancel()
	ps.logger.Debug().Str("subscriptionId", id).Msg("Event subscription closed")
}

// Publish hands event to every accepting subscriber without blocking; a full buffer drops it
func (ps *WebhookPubSub) Publish(event *domain.WebhookEvent) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	delivered := 0
	for id, sub := range ps.subs {
		if !sub.Filter.accepts(event) {
			continue
		}
		select {
		case sub.Events <- event:
			delivered++
		case <-sub.ctx.Done():
		default:
			ps.logger.Warn().Str("subscriptionId", id).Str("topic", event.Topic).Msg("Subscriber is slow, event dropped")
		}
	}

	if delivered > 0 {
		ps.logger.Debug().
			Str("topic", event.Topic).
			Str("shop", event.Shop).
			Int("subscribers", delivered).
			Msg("Event published")
	}
}

// Subscribers reports the number of live subscriptions
func (ps *WebhookPubSub) Subscribers() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subs)
}
