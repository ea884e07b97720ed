package database

import (
	"github.com/mdouchement/imgstore/internal/model"
)

type (
	// A Client can interacts with the database.
	Client interface {
		// Save inserts or updates the entry in database with the given model.
		Save(m model.Model) error
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool
		// IsConflict returns true if err is a conflicting write error.
		IsConflict(err error) bool

		ImageInteraction
		ChunkInteraction
	}

	// An ImageInteraction defines all the methods used to interact with an image record.
	ImageInteraction interface {
		// FindImage returns the image metadata for the given id.
		FindImage(id string) (*model.Image, error)
		// ResolveDigest returns the id of the image holding the given content digest.
		ResolveDigest(digest string) (string, error)
		// CreateImage persists the image and indexes its digest in a single
		// transaction. It fails with a conflict error if the digest is already
		// indexed, leaving the database untouched.
		CreateImage(image *model.Image, digest string) error
	}

	// A ChunkInteraction defines all the methods used to interact with chunk records.
	ChunkInteraction interface {
		// WriteChunk persists the data of one chunk of an image.
		WriteChunk(id string, index int, data []byte) error
		// ReadChunk returns the data of one chunk of an image.
		ReadChunk(id string, index int) ([]byte, error)
		// DeleteChunk removes one chunk of an image. Missing chunks are ignored.
		DeleteChunk(id string, index int) error
	}
)
