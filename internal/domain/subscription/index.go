// Package subscription maintains the topic fan-out index: which connections
// care about which topics, and which topics a connection holds.
package subscription

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sonet/feed-realtime-service/internal/domain/model"
)

// DefaultMaxPerConnection bounds simultaneous subscriptions per connection
// as an abuse control.
const DefaultMaxPerConnection = 20

// Index keeps the two directions of the mapping flat: namespaced topic
// strings avoid nested maps and nested locking. One RWMutex covers both maps
// because every mutation touches both.
type Index struct {
	mu      sync.RWMutex
	byTopic map[model.Topic]map[uuid.UUID]struct{}
	byConn  map[uuid.UUID]map[model.Topic]struct{}

	maxPerConn int
}

func NewIndex(maxPerConn int) *Index {
	if maxPerConn <= 0 {
		maxPerConn = DefaultMaxPerConnection
	}
	return &Index{
		byTopic:    make(map[model.Topic]map[uuid.UUID]struct{}),
		byConn:     make(map[uuid.UUID]map[model.Topic]struct{}),
		maxPerConn: maxPerConn,
	}
}

// Subscribe inserts the (connection, topic) pair into both maps. It is
// idempotent: re-subscribing to a held topic counts as success and leaves
// exactly one entry. Unauthenticated connections cannot hold subscriptions.
func (i *Index) Subscribe(connID uuid.UUID, userID string, topic model.Topic) error {
	if userID == "" {
		return model.ErrUnauthenticated
	}
	if !topic.Valid() {
		return model.ErrInvalidTopic
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	topics := i.byConn[connID]
	if topics == nil {
		topics = make(map[model.Topic]struct{})
		i.byConn[connID] = topics
	}
	if _, held := topics[topic]; held {
		return nil
	}
	if len(topics) >= i.maxPerConn {
		return model.ErrTooManySubscriptions
	}

	topics[topic] = struct{}{}

	subs := i.byTopic[topic]
	if subs == nil {
		subs = make(map[uuid.UUID]struct{})
		i.byTopic[topic] = subs
	}
	subs[connID] = struct{}{}
	return nil
}

// Unsubscribe removes the pair from both maps; no-op when absent.
func (i *Index) Unsubscribe(connID uuid.UUID, topic model.Topic) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.removeLocked(connID, topic)
}

// UnsubscribeAll drops every subscription the connection holds. Used on
// teardown.
func (i *Index) UnsubscribeAll(connID uuid.UUID) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for topic := range i.byConn[connID] {
		i.removeLocked(connID, topic)
	}
	delete(i.byConn, connID)
}

func (i *Index) removeLocked(connID uuid.UUID, topic model.Topic) {
	if topics, ok := i.byConn[connID]; ok {
		delete(topics, topic)
		if len(topics) == 0 {
			delete(i.byConn, connID)
		}
	}
	if subs, ok := i.byTopic[topic]; ok {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(i.byTopic, topic)
		}
	}
}

// Subscribers returns a snapshot of the connections subscribed to the topic,
// so the caller never iterates under the index lock while sending.
func (i *Index) Subscribers(topic model.Topic) []uuid.UUID {
	i.mu.RLock()
	defer i.mu.RUnlock()

	subs := i.byTopic[topic]
	out := make([]uuid.UUID, 0, len(subs))
	for id := range subs {
		out = append(out, id)
	}
	return out
}

// TopicsFor snapshots the topics a connection currently holds.
func (i *Index) TopicsFor(connID uuid.UUID) []model.Topic {
	i.mu.RLock()
	defer i.mu.RUnlock()

	topics := i.byConn[connID]
	out := make([]model.Topic, 0, len(topics))
	for t := range topics {
		out = append(out, t)
	}
	return out
}

// Holds reports whether the connection currently holds the topic.
func (i *Index) Holds(connID uuid.UUID, topic model.Topic) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.byConn[connID][topic]
	return ok
}

// Counts reports index sizes for the metrics snapshot.
func (i *Index) Counts() (topics, subscriptions int) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	for _, subs := range i.byTopic {
		subscriptions += len(subs)
	}
	return len(i.byTopic), subscriptions
}
