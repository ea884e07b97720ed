package model

// An Image represents the metadata of a blob stored chunk by chunk in the database.
type Image struct {
	Base `json:",inline" storm:"inline"`

	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	ChunkCount  int    `json:"chunk_count"`
	Checksum    string `json:"checksum" storm:"index"`

	// Completed is true once every chunk is durably written.
	// It is flipped last so a reader can never see a partially written image.
	Completed bool `json:"completed"`
}
