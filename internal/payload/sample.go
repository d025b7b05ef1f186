package payload

import (
	"math/rand/v2"
	"strings"
	"time"

	"filecast/internal/transport"
	"filecast/pkg/utils"
)

const (
	FileName    = "sample-data.json"
	ContentType = "application/json"

	// Item 4 carries this many bytes of padding to exercise larger uploads
	paddingSize = 500 * 1024
)

// DefaultMessage accompanies every sample upload
var DefaultMessage = transport.Message{
	Text:   "Sample JSON data file",
	Sender: "files-demo-user",
}

type Item struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Padding string  `json:"500kb,omitempty"`
}

type Metadata struct {
	Source  string `json:"source"`
	Version string `json:"version"`
}

// Sample is the demonstration document uploaded as a file
type Sample struct {
	Title     string   `json:"title"`
	Items     []Item   `json:"items"`
	Timestamp string   `json:"timestamp"`
	Metadata  Metadata `json:"metadata"`
}

// NewSample builds the sample document. random must return values in [0, 1).
func NewSample(now time.Time, random func() float64) Sample {
	if random == nil {
		random = rand.Float64
	}

	return Sample{
		Title: "Sample JSON Data",
		Items: []Item{
			{ID: 1, Name: "Item 1", Value: random() * 100},
			{ID: 2, Name: "Item 2", Value: random() * 100},
			{ID: 3, Name: "Item 3", Value: random() * 100},
			{ID: 4, Name: "Item 4", Value: random() * 100, Padding: strings.Repeat("A", paddingSize)},
		},
		Timestamp: now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Metadata: Metadata{
			Source:  "PubNub Files API Demo",
			Version: "1.0.0",
		},
	}
}

// Encode serializes v as indented JSON
func Encode(v any) ([]byte, error) {
	return utils.EncodeJSON(v)
}

// NewFile wraps v as the named JSON attachment published on the channel
func NewFile(v any) (transport.File, error) {
	data, err := Encode(v)
	if err != nil {
		return transport.File{}, err
	}
	return transport.File{
		Name:     FileName,
		MimeType: ContentType,
		Data:     data,
	}, nil
}
