// Package domain contains core domain types for the Better HAC application.
package domain

// ImageRecord is a single generated image persisted in the gallery store.
// The ID is assigned by the store on insertion and never reused.
type ImageRecord struct {
	ID        int64  `json:"id"`
	Prompt    string `json:"prompt"`
	ImageData string `json:"imageData"` // base64-encoded payload
	CreatedAt string `json:"createdAt"` // RFC 3339, immutable after insertion
}

// EstimatedSize returns the estimated decoded byte size of the record.
// ImageData is treated as base64 (4 chars encode 3 bytes), the prompt
// counts at its raw byte length.
func (r *ImageRecord) EstimatedSize() int64 {
	return int64(len(r.ImageData))*3/4 + int64(len(r.Prompt))
}

// StorageStats summarizes gallery storage usage.
type StorageStats struct {
	Count              int64  `json:"count"`
	EstimatedSizeBytes int64  `json:"estimatedSizeBytes"`
	EstimatedSizeMB    string `json:"estimatedSizeMB"`
}
