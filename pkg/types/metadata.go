package types

import "filecast/pkg/utils"

// FileMetadata describes a file moved through the channel
type FileMetadata struct {
	Name     string `json:"name"`     // Original filename
	Size     int64  `json:"size"`     // File size in bytes
	MimeType string `json:"mimeType"` // MIME type of the file
	Checksum string `json:"checksum"` // SHA-256 checksum
}

// NewFileMetadata describes data published or received under name
func NewFileMetadata(name, mimeType string, data []byte) FileMetadata {
	return FileMetadata{
		Name:     name,
		Size:     int64(len(data)),
		MimeType: mimeType,
		Checksum: utils.Checksum(data),
	}
}
