package domain

// Image is a photo attached to exactly one container. Filepath and the
// derived metadata (dimensions, blur hash) are produced by the upload
// pipeline; this type just carries them.
type Image struct {
	Syncable
	Filename    string `json:"filename"` // original name as uploaded
	Filepath    string `json:"filepath"` // storage-relative path
	MimeType    string `json:"mime_type"`
	Size        int64  `json:"size"` // bytes
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	BlurHash    string `json:"blur_hash,omitempty"` // compact placeholder for progressive loading
	ContainerID string `json:"container_id"`
	// SortOrder sequences images within a container's gallery.
	// New uploads append at max(existing)+1.
	SortOrder int `json:"sort_order"`
}
