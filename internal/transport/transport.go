//go:generate mockgen -source=transport.go -destination=mock/transport.go -package=mock_transport

package transport

import (
	"context"
	"errors"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrClosed       = errors.New("transport closed")
)

// File is a named binary attachment published on a channel
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// Message accompanies a published file
type Message struct {
	Text   string `json:"text"`
	Sender string `json:"sender"`
}

// PublishResult is the service acknowledgment of a published file
type PublishResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FileEvent notifies subscribers that a file was attached to a channel
type FileEvent struct {
	FileID    string `json:"fileId"`
	FileName  string `json:"fileName"`
	Publisher string `json:"publisher"`
	Channel   string `json:"channel"`
	Timetoken int64  `json:"timetoken"`
}

// Client defines the hosted file/pub-sub operations the workflow relies on
type Client interface {
	// PublishFile uploads file to channel together with message
	PublishFile(ctx context.Context, channel string, file File, message Message) (PublishResult, error)

	// Subscribe starts delivery of file events published on channel
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	// DownloadFile fetches the raw content of a previously published file
	DownloadFile(ctx context.Context, channel, id, name string) ([]byte, error)

	// Close releases the client
	Close() error
}

// Subscription is an active subscription to one channel.
// Events is closed once Close returns, so a closed subscription delivers nothing.
type Subscription interface {
	Events() <-chan FileEvent
	Close() error
}
