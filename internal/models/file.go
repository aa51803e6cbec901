package models

import "time"

// FileReference identifies a stored upload.
type FileReference struct {
	Key          string `json:"key"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimeType"`
}

// StoredFile is an admin listing entry for the upload directory.
type StoredFile struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	SizeInMB string    `json:"sizeInMB"`
}

// PreviewLink is a signed link to an order's file.
type PreviewLink struct {
	PreviewURL string    `json:"previewUrl"`
	ExpiresAt  time.Time `json:"expiresAt"`
}
