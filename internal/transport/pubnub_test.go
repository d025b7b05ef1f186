package transport

import (
	"errors"
	"net/http"
	"testing"

	pubnub "github.com/pubnub/go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileEventFromPubNub(t *testing.T) {
	tests := []struct {
		name    string
		evt     *pubnub.PNFilesEvent
		want    FileEvent
		wantErr bool
		foreign bool
	}{
		{
			name:    "nil event",
			evt:     nil,
			wantErr: true,
		},
		{
			name:    "empty file details",
			evt:     &pubnub.PNFilesEvent{Channel: "ch", Publisher: "user-1"},
			wantErr: true,
		},
		{
			name: "missing file name",
			evt: &pubnub.PNFilesEvent{
				Channel: "ch",
				File:    pubnub.PNFileMessageAndDetails{PNFile: pubnub.PNFileDetails{ID: "abc"}},
			},
			wantErr: true,
		},
		{
			name: "other channel",
			evt: &pubnub.PNFilesEvent{
				Channel: "other",
				File:    pubnub.PNFileMessageAndDetails{PNFile: pubnub.PNFileDetails{ID: "abc", Name: "sample-data.json"}},
			},
			wantErr: true,
			foreign: true,
		},
		{
			name: "well formed",
			evt: &pubnub.PNFilesEvent{
				Channel:   "ch",
				Publisher: "user-1",
				Timetoken: 17000000000000000,
				File:      pubnub.PNFileMessageAndDetails{PNFile: pubnub.PNFileDetails{ID: "abc", Name: "sample-data.json"}},
			},
			want: FileEvent{
				FileID:    "abc",
				FileName:  "sample-data.json",
				Publisher: "user-1",
				Channel:   "ch",
				Timetoken: 17000000000000000,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fileEventFromPubNub("ch", tt.evt)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.foreign, errors.Is(err, errForeignChannel))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDownloadError(t *testing.T) {
	cause := errors.New("request failed")

	err := downloadError(http.StatusNotFound, "abc", "sample-data.json", cause)
	assert.ErrorIs(t, err, ErrFileNotFound)

	err = downloadError(http.StatusForbidden, "abc", "sample-data.json", cause)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrFileNotFound)

	err = downloadError(0, "abc", "sample-data.json", cause)
	assert.ErrorIs(t, err, cause)
}
