package reporter

import (
	"fmt"
	"io"
	"sync"
	"time"

	"filecast/internal/app"
	"filecast/pkg/utils"
)

// Summary holds the counters of one session
type Summary struct {
	UploadsOK       int
	UploadsFailed   int
	DownloadsOK     int
	DownloadsFailed int
	BytesReceived   int64
	Duration        time.Duration
}

// SessionReporter tallies upload and download outcomes through the
// controller listeners and prints a summary when the session ends
type SessionReporter struct {
	out   io.Writer
	start time.Time

	mux     sync.Mutex
	summary Summary
}

func NewSessionReporter(out io.Writer) *SessionReporter {
	return &SessionReporter{
		out:   out,
		start: time.Now(),
	}
}

// OnUpload is an upload listener
func (r *SessionReporter) OnUpload(result app.UploadResult) {
	r.mux.Lock()
	defer r.mux.Unlock()

	if result.Success {
		r.summary.UploadsOK++
	} else {
		r.summary.UploadsFailed++
	}
}

// OnDownload is a download listener. Only terminal states are counted.
func (r *SessionReporter) OnDownload(state app.DownloadState) {
	r.mux.Lock()
	defer r.mux.Unlock()

	switch state.Phase {
	case app.Succeeded:
		r.summary.DownloadsOK++
		r.summary.BytesReceived += int64(len(state.Raw))
	case app.Failed:
		r.summary.DownloadsFailed++
	}
}

func (r *SessionReporter) Summary() Summary {
	r.mux.Lock()
	defer r.mux.Unlock()

	s := r.summary
	s.Duration = time.Since(r.start)
	return s
}

// PrintSummary writes the session summary banner
func (r *SessionReporter) PrintSummary() {
	s := r.Summary()

	fmt.Fprintln(r.out, "=============================================")
	fmt.Fprintln(r.out, "Session finished")
	fmt.Fprintf(r.out, "+ Uploads: %d ok, %d failed\n", s.UploadsOK, s.UploadsFailed)
	fmt.Fprintf(r.out, "+ Downloads: %d ok, %d failed\n", s.DownloadsOK, s.DownloadsFailed)
	fmt.Fprintf(r.out, "+ Bytes received: %s\n", utils.FormatFileSize(s.BytesReceived))
	fmt.Fprintf(r.out, "+ Duration: %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintln(r.out, "=============================================")
}
