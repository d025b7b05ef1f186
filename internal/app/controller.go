package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"filecast/internal/payload"
	"filecast/internal/transport"
	"filecast/pkg/utils"

	"github.com/sirupsen/logrus"
)

type Option func(c *Controller)

// WithDownloadListener registers l to observe every Download State transition.
// Listeners run serialized in transition order and must not call back into the Controller.
func WithDownloadListener(l func(DownloadState)) Option {
	return func(c *Controller) {
		c.downloadListeners = append(c.downloadListeners, l)
	}
}

// WithUploadListener registers l to observe every Upload Result.
// Listeners must not call back into the Controller.
func WithUploadListener(l func(UploadResult)) Option {
	return func(c *Controller) {
		c.uploadListeners = append(c.uploadListeners, l)
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// WithStaleDownloadsDropped makes only the download of the latest
// notification able to update the state.
func WithStaleDownloadsDropped() Option {
	return func(c *Controller) {
		c.dropStale = true
	}
}

// WithMessage overrides the message published with each upload
func WithMessage(msg transport.Message) Option {
	return func(c *Controller) {
		c.message = msg
	}
}

// Controller drives the upload action and reacts to file notifications on
// one channel by downloading and decoding the announced file.
type Controller struct {
	client  transport.Client
	channel string
	sample  any
	message transport.Message
	log     *logrus.Entry

	dropStale bool

	downloadListeners []func(DownloadState)
	uploadListeners   []func(UploadResult)

	uploading atomic.Int32
	downloads sync.WaitGroup

	mux        sync.Mutex
	state      DownloadState
	lastUpload *UploadResult
	seq        uint64
	mounted    bool
	unmounted  bool
	sub        transport.Subscription
	loopDone   chan struct{}
}

// NewController creates a controller publishing sample on channel through client
func NewController(client transport.Client, channel string, sample any, opts ...Option) *Controller {
	c := &Controller{
		client:  client,
		channel: channel,
		sample:  sample,
		message: payload.DefaultMessage,
		log:     logrus.WithField("component", "controller"),
		state:   DownloadState{Phase: Idle},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Snapshot returns the current Download State
func (c *Controller) Snapshot() DownloadState {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.state
}

// LastUpload returns the result of the most recently completed upload
func (c *Controller) LastUpload() (UploadResult, bool) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.lastUpload == nil {
		return UploadResult{}, false
	}
	return *c.lastUpload, true
}

// Uploading reports whether an upload is outstanding
func (c *Controller) Uploading() bool {
	return c.uploading.Load() > 0
}

// Upload publishes the sample document as a file on the channel.
// Failures are returned in the result; there is no retry.
func (c *Controller) Upload(ctx context.Context) UploadResult {
	c.uploading.Add(1)
	defer c.uploading.Add(-1)

	result := c.upload(ctx)

	c.mux.Lock()
	c.lastUpload = &result
	for _, l := range c.uploadListeners {
		l(result)
	}
	c.mux.Unlock()

	return result
}

func (c *Controller) upload(ctx context.Context) UploadResult {
	file, err := payload.NewFile(c.sample)
	if err != nil {
		c.log.Errorf("Error encoding file: %v", err)
		return UploadResult{Success: false, Error: errorMessage(err)}
	}

	ack, err := c.client.PublishFile(ctx, c.channel, file, c.message)
	if err != nil {
		c.log.Errorf("Error uploading file: %v", err)
		return UploadResult{Success: false, Error: errorMessage(err)}
	}

	c.log.Infof("File uploaded successfully: id=%s name=%s", ack.ID, ack.Name)
	return UploadResult{Success: true, ID: ack.ID, Name: ack.Name}
}

// Mount subscribes to the channel and starts reacting to file notifications.
// A controller is mounted at most once.
func (c *Controller) Mount(ctx context.Context) error {
	c.mux.Lock()
	if c.mounted || c.unmounted {
		c.mux.Unlock()
		return ErrAlreadyMounted
	}
	c.mounted = true
	c.mux.Unlock()

	sub, err := c.client.Subscribe(ctx, c.channel)
	if err != nil {
		c.mux.Lock()
		c.mounted = false
		c.mux.Unlock()
		return fmt.Errorf("failed to subscribe to %s: %w", c.channel, err)
	}

	done := make(chan struct{})

	c.mux.Lock()
	if c.unmounted {
		c.mux.Unlock()
		sub.Close()
		return fmt.Errorf("unmounted while subscribing to %s", c.channel)
	}
	c.sub = sub
	c.loopDone = done
	c.mux.Unlock()

	go c.consume(ctx, sub, done)

	c.log.Infof("Subscribed to %s for file notifications", c.channel)
	return nil
}

// Unmount tears the subscription down. Downloads already in flight are not
// cancelled; their completions are ignored.
func (c *Controller) Unmount() error {
	c.mux.Lock()
	if !c.mounted {
		c.mux.Unlock()
		return ErrNotMounted
	}
	if c.unmounted {
		c.mux.Unlock()
		return nil
	}
	c.unmounted = true
	sub, done := c.sub, c.loopDone
	c.mux.Unlock()

	if sub == nil {
		return nil
	}
	err := sub.Close()
	<-done

	c.log.Infof("Unsubscribed from %s", c.channel)
	return err
}

// Wait blocks until every download started so far has completed.
// It is meant to be called after Unmount.
func (c *Controller) Wait() {
	c.downloads.Wait()
}

func (c *Controller) consume(ctx context.Context, sub transport.Subscription, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			c.handleEvent(ctx, event)
		}
	}
}

func (c *Controller) handleEvent(ctx context.Context, event transport.FileEvent) {
	c.mux.Lock()
	if c.unmounted {
		c.mux.Unlock()
		c.log.Debugf("File event %s after unmount ignored", event.FileID)
		return
	}
	c.seq++
	seq := c.seq
	c.setStateLocked(DownloadState{Phase: Loading, Event: &event})
	c.downloads.Add(1)
	c.mux.Unlock()

	c.log.Infof("File event received: id=%s name=%s from=%s", event.FileID, event.FileName, event.Publisher)

	// Downloads outlive the subscription: they complete or fail on their own.
	go c.download(context.WithoutCancel(ctx), event, seq)
}

func (c *Controller) download(ctx context.Context, event transport.FileEvent, seq uint64) {
	defer c.downloads.Done()

	next := c.fetch(ctx, event)

	c.mux.Lock()
	defer c.mux.Unlock()

	if c.unmounted {
		c.log.Debugf("Download of %s completed after unmount, result ignored", event.FileID)
		return
	}
	if c.dropStale && seq != c.seq {
		c.log.Debugf("Download of %s superseded by a newer notification, result dropped", event.FileID)
		return
	}
	c.setStateLocked(next)
}

func (c *Controller) fetch(ctx context.Context, event transport.FileEvent) DownloadState {
	data, err := c.client.DownloadFile(ctx, c.channel, event.FileID, event.FileName)
	if err != nil {
		c.log.Errorf("Error downloading file: %v", err)
		return DownloadState{Phase: Failed, Event: &event, Error: errorMessage(err)}
	}

	content, err := utils.DecodeJSON[any](data)
	if err != nil {
		c.log.Errorf("Error decoding file %s: %v", event.FileName, err)
		return DownloadState{Phase: Failed, Event: &event, Error: errorMessage(err)}
	}

	c.log.Infof("File downloaded successfully: %s (%s)", event.FileName, utils.FormatFileSize(int64(len(data))))
	return DownloadState{Phase: Succeeded, Event: &event, Content: content, Raw: data}
}

func (c *Controller) setStateLocked(s DownloadState) {
	c.state = s
	for _, l := range c.downloadListeners {
		l(s)
	}
}
