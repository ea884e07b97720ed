package service

import (
	"io"
	"mime/multipart"
	"path"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/imgstore/internal/checksum"
	"github.com/mdouchement/imgstore/internal/storage"
)

// Outcome of a single file ingest.
const (
	// StatusUploaded means the content was unknown and has been fully stored.
	StatusUploaded = "uploaded"
	// StatusCached means the exact same content was already stored, no byte
	// has been written.
	StatusCached = "cached"
	// StatusOverwritten means a previous upload of the same content never
	// completed and has been rewritten in place.
	StatusOverwritten = "overwritten"
	// StatusError means this file could not be ingested.
	StatusError = "error"
)

// A Result describes the outcome of a single file ingest.
type Result struct {
	Name   string
	URL    string
	Status string
	Err    error
}

// An Uploader ingests uploaded files: it hashes the payload, deduplicates it
// against the stored content digests and writes it when needed.
type Uploader struct {
	repository *storage.Repository
	origin     string
}

// NewUploader returns a new Uploader crafting public URLs on the given origin.
func NewUploader(repository *storage.Repository, origin string) *Uploader {
	return &Uploader{
		repository: repository,
		origin:     origin,
	}
}

// Upload ingests one file and returns its outcome. It never returns an error:
// a failure is recorded in the Result so one file cannot abort a batch.
func (s *Uploader) Upload(fh *multipart.FileHeader) *Result {
	result := &Result{
		Name:   fh.Filename,
		Status: StatusError,
	}

	f, err := fh.Open()
	if err != nil {
		result.Err = err
		return result
	}
	defer f.Close()

	payload, err := io.ReadAll(f)
	if err != nil {
		result.Err = err
		return result
	}

	contentType := fh.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}

	digest := checksum.MD5(payload)

	id, completed, err := s.repository.Resolve(digest)
	status := StatusOverwritten
	switch {
	case storage.IsNotFound(err):
		id, completed, err = s.repository.CreateOrReuse(digest, fh.Filename, contentType)
		if err != nil {
			result.Err = err
			return result
		}
		status = StatusUploaded
	case err != nil:
		result.Err = err
		return result
	}

	if completed {
		// The stored payload is immutable, only the public URL is recomputed.
		status = StatusCached
	} else if err := s.repository.WritePayload(id, payload, fh.Filename, contentType, digest); err != nil {
		result.Err = err
		return result
	}

	result.URL = s.origin + "/image/" + id + path.Ext(fh.Filename)
	result.Status = status
	return result
}
