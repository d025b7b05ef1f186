package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"filecast/internal/config"

	"github.com/goccy/go-json"
	pubnub "github.com/pubnub/go/v7"
	"github.com/sirupsen/logrus"
)

// PubNubClient implements Client on top of the PubNub Files API
type PubNubClient struct {
	pn *pubnub.PubNub
}

func NewPubNubClient(cfg *config.PubNubConfig, userID string) *PubNubClient {
	pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(userID))
	pnConfig.PublishKey = cfg.PublishKey
	pnConfig.SubscribeKey = cfg.SubscribeKey

	return &PubNubClient{
		pn: pubnub.NewPubNub(pnConfig),
	}
}

func (c *PubNubClient) PublishFile(ctx context.Context, channel string, file File, message Message) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}

	// The SDK uploads from an *os.File, so the in-memory payload is spooled first.
	tmp, err := os.CreateTemp("", "filecast-*")
	if err != nil {
		return PublishResult{}, fmt.Errorf("error spooling %s: %w", file.Name, err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(file.Data); err != nil {
		return PublishResult{}, fmt.Errorf("error spooling %s: %w", file.Name, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return PublishResult{}, fmt.Errorf("error spooling %s: %w", file.Name, err)
	}

	rawMessage, err := json.Marshal(message)
	if err != nil {
		return PublishResult{}, fmt.Errorf("error encoding message: %w", err)
	}

	resp, status, err := c.pn.SendFile().
		Channel(channel).
		Name(file.Name).
		Message(string(rawMessage)).
		File(tmp).
		Execute()
	if err != nil {
		return PublishResult{}, err
	}
	if resp == nil {
		return PublishResult{}, fmt.Errorf("empty response from send file (status %d)", status.StatusCode)
	}

	return PublishResult{ID: resp.Data.ID, Name: file.Name}, nil
}

func (c *PubNubClient) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &pubnubSubscription{
		pn:       c.pn,
		channel:  channel,
		listener: pubnub.NewListener(),
		events:   make(chan FileEvent),
		done:     make(chan struct{}),
	}

	c.pn.AddListener(sub.listener)
	c.pn.Subscribe().Channels([]string{channel}).Execute()

	sub.wg.Add(1)
	go sub.forward()

	logrus.Debugf("PubNubClient: listening for files on %s", channel)
	return sub, nil
}

func (c *PubNubClient) DownloadFile(ctx context.Context, channel, id, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, status, err := c.pn.DownloadFile().
		Channel(channel).
		ID(id).
		Name(name).
		Execute()
	if err != nil {
		return nil, downloadError(status.StatusCode, id, name, err)
	}
	if resp == nil || resp.File == nil {
		return nil, fmt.Errorf("%s/%s: %w", id, name, ErrFileNotFound)
	}

	data, err := io.ReadAll(resp.File)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", name, err)
	}
	return data, nil
}

func (c *PubNubClient) Close() error {
	c.pn.UnsubscribeAll()
	c.pn.Destroy()
	return nil
}

type pubnubSubscription struct {
	pn       *pubnub.PubNub
	channel  string
	listener *pubnub.Listener
	events   chan FileEvent
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

func (s *pubnubSubscription) Events() <-chan FileEvent {
	return s.events
}

func (s *pubnubSubscription) Close() error {
	s.once.Do(func() {
		s.pn.Unsubscribe().Channels([]string{s.channel}).Execute()
		s.pn.RemoveListener(s.listener)
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// forward owns the events channel and closes it on exit
func (s *pubnubSubscription) forward() {
	defer s.wg.Done()
	defer close(s.events)

	for {
		select {
		case <-s.done:
			return
		case status := <-s.listener.Status:
			if status != nil && status.Error {
				logrus.Warnf("PubNub status on %s: %v", s.channel, status.ErrorData)
			}
		case msg := <-s.listener.Message:
			if msg != nil {
				logrus.Debugf("PubNub message on %s ignored: %v", s.channel, msg.Message)
			}
		case <-s.listener.Presence:
		case evt := <-s.listener.File:
			event, err := fileEventFromPubNub(s.channel, evt)
			if errors.Is(err, errForeignChannel) {
				continue
			}
			if err != nil {
				logrus.Warnf("PubNub file event on %s ignored: %v", s.channel, err)
				continue
			}
			select {
			case s.events <- event:
			case <-s.done:
				return
			}
		}
	}
}

var errForeignChannel = errors.New("file event for another channel")

// fileEventFromPubNub converts evt, rejecting events not published on channel.
// Listeners receive the events of every channel subscribed on the client.
func fileEventFromPubNub(channel string, evt *pubnub.PNFilesEvent) (FileEvent, error) {
	if evt == nil {
		return FileEvent{}, errors.New("empty file event")
	}
	if evt.Channel != channel {
		return FileEvent{}, fmt.Errorf("%w: %s", errForeignChannel, evt.Channel)
	}
	if evt.File.PNFile.ID == "" || evt.File.PNFile.Name == "" {
		return FileEvent{}, errors.New("file event without file details")
	}
	return FileEvent{
		FileID:    evt.File.PNFile.ID,
		FileName:  evt.File.PNFile.Name,
		Publisher: evt.Publisher,
		Channel:   evt.Channel,
		Timetoken: evt.Timetoken,
	}, nil
}

func downloadError(statusCode int, id, name string, err error) error {
	if statusCode == http.StatusNotFound {
		return fmt.Errorf("%s/%s: %w", id, name, ErrFileNotFound)
	}
	return fmt.Errorf("error downloading %s/%s: %w", id, name, err)
}
