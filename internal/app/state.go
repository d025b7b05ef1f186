package app

import (
	"fmt"

	"filecast/internal/transport"
)

// Phase is the step of the download reaction
type Phase int

const (
	Idle Phase = iota
	Loading
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// DownloadState is the displayed outcome of the latest file notification
type DownloadState struct {
	Phase Phase

	// Event is the notification that drove the state, nil while Idle
	Event *transport.FileEvent

	// Content is the downloaded document, set when Succeeded
	Content any
	// Raw holds the downloaded bytes, set when Succeeded
	Raw []byte

	// Error describes the failure, set when Failed
	Error string
}

// StatusText is the human readable status line for the state
func (s DownloadState) StatusText() string {
	switch s.Phase {
	case Loading:
		return "Downloading file..."
	case Succeeded:
		return "File downloaded successfully:"
	case Failed:
		return "Error downloading file: " + s.Error
	default:
		return "Waiting for file..."
	}
}

// UploadResult is the outcome of one upload attempt
type UploadResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Error   string `json:"error,omitempty"`
}
