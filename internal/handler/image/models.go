package image

import (
	"time"

	mediarepo "github.com/bulatminnakhmetov/canvas2image/internal/repository/media"
)

// API request models

// SaveImageRequest represents an image save request
type SaveImageRequest struct {
	// Base64 image, bare or as a data URL
	Data string `json:"data"`
	// "png" or "jpeg"; anything else is saved as jpeg
	Format string `json:"format"`
}

// API response models

// SaveImageResponse represents a saved image
type SaveImageResponse struct {
	Locator string `json:"locator"`
}

// ImageEntryResponse is an image known to the media index
type ImageEntryResponse struct {
	ID          int       `json:"id"`
	Locator     string    `json:"locator"`
	DisplayName string    `json:"display_name"`
	MIMEType    string    `json:"mime_type"`
	Collection  string    `json:"collection"`
	ScannedAt   time.Time `json:"scanned_at"`
}

func newImageEntryResponse(m mediarepo.Media) ImageEntryResponse {
	return ImageEntryResponse{
		ID:          m.ID,
		Locator:     m.Locator,
		DisplayName: m.DisplayName,
		MIMEType:    m.MIMEType,
		Collection:  m.Collection,
		ScannedAt:   m.ScannedAt,
	}
}
