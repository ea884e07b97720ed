// Package storage implements the blob repository on top of the chunked
// key-value database.
package storage

import (
	"sync"

	"github.com/mdouchement/imgstore/internal/chunker"
	"github.com/mdouchement/imgstore/internal/database"
	"github.com/mdouchement/imgstore/internal/model"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when no image exists for the given id or digest.
	ErrNotFound = errors.New("image not found")
	// ErrIncomplete is returned when the image exists but its payload is not
	// fully written yet.
	ErrIncomplete = errors.New("image not completed")
	// ErrIntegrity is returned when a completed image misses chunk data.
	// It denotes a storage consistency fault.
	ErrIntegrity = errors.New("image storage inconsistency")
)

// IsNotFound returns true if err denotes a missing image.
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}

// IsIncomplete returns true if err denotes a partially written image.
func IsIncomplete(err error) bool {
	return errors.Cause(err) == ErrIncomplete
}

// IsIntegrity returns true if err denotes a storage consistency fault.
func IsIntegrity(err error) bool {
	return errors.Cause(err) == ErrIntegrity || errors.Cause(err) == chunker.ErrIntegrity
}

// A Repository owns the images' persistence: metadata, chunk records and the
// digest index. Payload writes follow a two-phase protocol so a concurrent
// reader can never observe a half-written image as available.
type Repository struct {
	db        database.Client
	chunksize int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRepository returns a new Repository storing payloads in chunks of at
// most chunksize bytes.
func NewRepository(db database.Client, chunksize int) *Repository {
	return &Repository{
		db:        db,
		chunksize: chunksize,
		locks:     map[string]*sync.Mutex{},
	}
}

// ChunkSize returns the maximum size of a stored chunk, in bytes.
func (r *Repository) ChunkSize() int {
	return r.chunksize
}

// Resolve returns the id of the image holding the given content digest and
// whether its payload is completed. It fails with ErrNotFound for an unknown
// digest.
func (r *Repository) Resolve(digest string) (string, bool, error) {
	id, err := r.db.ResolveDigest(digest)
	if r.db.IsNotFound(err) {
		return "", false, errors.Wrap(ErrNotFound, digest)
	}
	if err != nil {
		return "", false, err
	}

	image, err := r.db.FindImage(id)
	if r.db.IsNotFound(err) {
		// The index and the metadata are created in one transaction so a
		// dangling index entry denotes a corrupted store.
		return "", false, errors.Wrapf(ErrIntegrity, "dangling digest index %s", digest)
	}
	if err != nil {
		return "", false, err
	}

	return image.ID, image.Completed, nil
}

// CreateOrReuse allocates a fresh image id for the given digest, or returns
// the id of the image already holding it. Index and metadata are created in a
// single conditional transaction; when racing writers create the same digest,
// exactly one allocation wins and the others fall back on the winner's id.
func (r *Repository) CreateOrReuse(digest, name, contentType string) (string, bool, error) {
	image := &model.Image{
		Name:        name,
		ContentType: contentType,
		Checksum:    digest,
	}

	err := r.db.CreateImage(image, digest)
	if err == nil {
		return image.ID, false, nil
	}
	if r.db.IsConflict(err) {
		return r.Resolve(digest)
	}
	return "", false, err
}

// WritePayload persists the payload of an image: metadata first with the
// completed flag down, then every chunk in order, then the final metadata
// write raising the flag. A crash or a concurrent read in the middle of the
// sequence observes the image as not completed, never as corrupt data.
//
// Writes are serialized per image id. A completed image is immutable and is
// left untouched.
func (r *Repository) WritePayload(id string, payload []byte, name, contentType, digest string) error {
	lock := r.lock(id)
	lock.Lock()
	defer lock.Unlock()

	image, err := r.db.FindImage(id)
	if r.db.IsNotFound(err) {
		return errors.Wrap(ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	if image.Completed {
		return nil
	}

	chunks := chunker.Split(payload, r.chunksize)
	stale := image.ChunkCount

	image.Name = name
	image.ContentType = contentType
	image.Size = int64(len(payload))
	image.ChunkCount = len(chunks)
	image.Checksum = digest
	image.Completed = false

	if err := r.db.Save(image); err != nil {
		return err
	}

	// Chunks left over from a larger aborted upload of the same digest.
	for index := len(chunks); index < stale; index++ {
		if err := r.db.DeleteChunk(id, index); err != nil {
			return err
		}
	}

	for index, chunk := range chunks {
		if err := r.db.WriteChunk(id, index, chunk); err != nil {
			return err
		}
	}

	image.Completed = true
	return r.db.Save(image)
}

// Read returns the payload and the metadata of a completed image. It fails
// with ErrNotFound for an unknown id, ErrIncomplete for a partially written
// image and ErrIntegrity when chunk data is missing despite the completed
// flag.
func (r *Repository) Read(id string) ([]byte, *model.Image, error) {
	image, err := r.Metadata(id)
	if err != nil {
		return nil, nil, err
	}
	if !image.Completed {
		return nil, nil, errors.Wrap(ErrIncomplete, id)
	}

	chunks := make([][]byte, image.ChunkCount)
	for index := range chunks {
		chunk, err := r.db.ReadChunk(id, index)
		if r.db.IsNotFound(err) {
			return nil, nil, errors.Wrapf(ErrIntegrity, "image %s misses chunk %d", id, index)
		}
		if err != nil {
			return nil, nil, err
		}
		chunks[index] = chunk
	}

	payload, err := chunker.Join(chunks, image.Size)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "image %s", id)
	}
	return payload, image, nil
}

// Metadata returns the metadata of an image whatever its completion state.
func (r *Repository) Metadata(id string) (*model.Image, error) {
	image, err := r.db.FindImage(id)
	if r.db.IsNotFound(err) {
		return nil, errors.Wrap(ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return image, nil
}

func (r *Repository) lock(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[id] = lock
	}
	return lock
}
