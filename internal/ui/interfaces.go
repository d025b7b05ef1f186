package ui

import "filecast/internal/app"

// WorkflowUI renders the workflow controller outcomes to the user
type WorkflowUI interface {
	// ShowMessage displays a message to the user
	ShowMessage(message string)

	// ShowUploadResult displays the outcome of an upload
	ShowUploadResult(result app.UploadResult)

	// ShowDownloadState displays a download state transition
	ShowDownloadState(state app.DownloadState)
}
