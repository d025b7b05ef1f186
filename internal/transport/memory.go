package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

const memoryEventBuffer = 16

type memoryFile struct {
	file      File
	publisher string
}

// MemoryClient is an in-process loopback implementation of Client.
// Every publish is fanned out to the live subscriptions of the same channel.
type MemoryClient struct {
	userID string

	mux    sync.Mutex
	closed bool
	files  map[string]map[string]memoryFile // channel -> id -> file
	subs   map[string][]*memorySubscription // channel -> subscriptions
}

func NewMemoryClient(userID string) *MemoryClient {
	return &MemoryClient{
		userID: userID,
		files:  make(map[string]map[string]memoryFile),
		subs:   make(map[string][]*memorySubscription),
	}
}

func (c *MemoryClient) PublishFile(ctx context.Context, channel string, file File, message Message) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}

	c.mux.Lock()
	defer c.mux.Unlock()

	if c.closed {
		return PublishResult{}, ErrClosed
	}

	id := uuid.NewString()
	stored := file
	stored.Data = append([]byte(nil), file.Data...)

	if c.files[channel] == nil {
		c.files[channel] = make(map[string]memoryFile)
	}
	c.files[channel][id] = memoryFile{file: stored, publisher: c.userID}

	event := FileEvent{
		FileID:    id,
		FileName:  file.Name,
		Publisher: c.userID,
		Channel:   channel,
		Timetoken: time.Now().UnixNano() / 100,
	}
	for _, sub := range c.subs[channel] {
		sub.deliver(event)
	}

	logrus.Debugf("MemoryClient: published %q (%d bytes) on %q with message %q", file.Name, len(file.Data), channel, message.Text)
	return PublishResult{ID: id, Name: file.Name}, nil
}

func (c *MemoryClient) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mux.Lock()
	defer c.mux.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	sub := &memorySubscription{
		client:  c,
		channel: channel,
		events:  make(chan FileEvent, memoryEventBuffer),
	}
	c.subs[channel] = append(c.subs[channel], sub)
	return sub, nil
}

func (c *MemoryClient) DownloadFile(ctx context.Context, channel, id, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mux.Lock()
	defer c.mux.Unlock()

	stored, ok := c.files[channel][id]
	if !ok || stored.file.Name != name {
		return nil, fmt.Errorf("%s/%s: %w", id, name, ErrFileNotFound)
	}
	return append([]byte(nil), stored.file.Data...), nil
}

func (c *MemoryClient) Close() error {
	c.mux.Lock()
	defer c.mux.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	for channel, subs := range c.subs {
		for _, sub := range subs {
			sub.closeLocked()
		}
		delete(c.subs, channel)
	}
	return nil
}

func (c *MemoryClient) unsubscribe(sub *memorySubscription) {
	c.mux.Lock()
	defer c.mux.Unlock()

	c.subs[sub.channel] = lo.Filter(c.subs[sub.channel], func(s *memorySubscription, _ int) bool {
		return s != sub
	})
	if len(c.subs[sub.channel]) == 0 {
		delete(c.subs, sub.channel)
	}
	sub.closeLocked()
}

type memorySubscription struct {
	client  *MemoryClient
	channel string
	events  chan FileEvent
	closed  bool // guarded by client.mux
}

func (s *memorySubscription) Events() <-chan FileEvent {
	return s.events
}

func (s *memorySubscription) Close() error {
	s.client.unsubscribe(s)
	return nil
}

// deliver and closeLocked must be called with client.mux held.
func (s *memorySubscription) deliver(event FileEvent) {
	if s.closed {
		return
	}
	select {
	case s.events <- event:
	default:
		logrus.Warnf("MemoryClient: subscription on %q is full, dropping event for %q", s.channel, event.FileID)
	}
}

func (s *memorySubscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}
