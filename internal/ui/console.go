package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"filecast/internal/app"
	"filecast/internal/payload"
	"filecast/pkg/types"
	"filecast/pkg/utils"

	"github.com/schollz/progressbar/v3"
)

// ConsoleUI renders upload results and download states as text
type ConsoleUI struct {
	out        io.Writer
	spinnerOut io.Writer

	mux     sync.Mutex
	spinner *progressbar.ProgressBar
}

// NewConsoleUI creates a console UI writing to out. A spinner is drawn on
// spinnerOut while a download is in flight; nil disables it.
func NewConsoleUI(out, spinnerOut io.Writer) *ConsoleUI {
	return &ConsoleUI{
		out:        out,
		spinnerOut: spinnerOut,
	}
}

var _ WorkflowUI = (*ConsoleUI)(nil)

// ShowMessage displays a message to the user
func (c *ConsoleUI) ShowMessage(message string) {
	c.mux.Lock()
	defer c.mux.Unlock()
	fmt.Fprintln(c.out, message)
}

// ShowUploadResult prints the outcome of an upload
func (c *ConsoleUI) ShowUploadResult(result app.UploadResult) {
	c.mux.Lock()
	defer c.mux.Unlock()

	if !result.Success {
		fmt.Fprintf(c.out, "Upload failed: %s\n", result.Error)
		return
	}
	fmt.Fprintf(c.out, "Upload successful!\nFile ID: %s\nFile Name: %s\n", result.ID, result.Name)
}

// ShowDownloadState prints a download state transition
func (c *ConsoleUI) ShowDownloadState(state app.DownloadState) {
	c.mux.Lock()
	defer c.mux.Unlock()

	c.stopSpinner()

	switch state.Phase {
	case app.Idle:
		fmt.Fprintln(c.out, state.StatusText())
	case app.Loading:
		c.showEvent(state)
		c.startSpinner(state.StatusText())
	case app.Succeeded:
		c.showContent(state)
	case app.Failed:
		fmt.Fprintln(c.out, state.StatusText())
	}
}

func (c *ConsoleUI) showEvent(state app.DownloadState) {
	fmt.Fprintln(c.out, "New file received!")
	if state.Event == nil {
		return
	}
	fmt.Fprintf(c.out, "File ID: %s\n", state.Event.FileID)
	fmt.Fprintf(c.out, "File Name: %s\n", state.Event.FileName)
	fmt.Fprintf(c.out, "From: %s\n", state.Event.Publisher)
}

func (c *ConsoleUI) showContent(state app.DownloadState) {
	fmt.Fprintln(c.out, state.StatusText())

	pretty, err := utils.EncodeJSON(state.Content)
	if err != nil {
		fmt.Fprintf(c.out, "%v\n", state.Content)
	} else {
		fmt.Fprintln(c.out, string(pretty))
	}

	name := payload.FileName
	if state.Event != nil {
		name = state.Event.FileName
	}
	meta := types.NewFileMetadata(name, payload.ContentType, state.Raw)
	fmt.Fprintln(c.out, "=============================================")
	fmt.Fprintf(c.out, "+ File: %s\n", meta.Name)
	fmt.Fprintf(c.out, "+ Size: %s\n", utils.FormatFileSize(meta.Size))
	fmt.Fprintf(c.out, "+ Checksum: %s\n", meta.Checksum)
	fmt.Fprintln(c.out, "=============================================")
}

func (c *ConsoleUI) startSpinner(description string) {
	if c.spinnerOut == nil {
		return
	}
	c.spinner = progressbar.NewOptions64(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(c.spinnerOut),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetSpinnerChangeInterval(100*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)
}

func (c *ConsoleUI) stopSpinner() {
	if c.spinner == nil {
		return
	}
	_ = c.spinner.Finish()
	c.spinner = nil
}
