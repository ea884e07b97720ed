package database

import (
	"fmt"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/json"
	"github.com/gofrs/uuid"
	"github.com/mdouchement/imgstore/internal/model"
	"github.com/pkg/errors"
)

const (
	// BucketDigestIndex maps a content digest to the id of the image holding it.
	BucketDigestIndex = "md5_to_id"
	// BucketChunks holds the images' payloads, one chunk per key.
	BucketChunks = "chunks"
)

// ErrConflict is returned when a conditional write lost the race against
// another writer.
var ErrConflict = errors.New("conflicting write")

type strm struct {
	db *storm.DB
}

// StormCodec is the format used to store data in the database.
var StormCodec = storm.Codec(json.Codec)

// StormInit initializes Storm database.
func StormInit(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	err = db.Init(&model.Image{})
	return errors.Wrap(err, "could not init image index")
}

// StormReIndex rebuilds the indexes of the Storm database.
func StormReIndex(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	err = db.ReIndex(&model.Image{})
	return errors.Wrap(err, "could not ReIndex images")
}

// StormOpen opens the Storm database and returns a Client.
func StormOpen(database string) (Client, error) {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	return &strm{
		db: db,
	}, nil
}

func (c *strm) Save(m model.Model) error {
	t := time.Now().UTC()
	m.SetUpdatedAt(t)

	if m.GetID() == "" {
		m.SetID(uuid.Must(uuid.NewV4()).String())
		m.SetCreatedAt(t)
	}

	return errors.Wrap(c.db.Save(m), "could not save the model")
}

func (c *strm) Close() error {
	return c.db.Close()
}

func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

func (c *strm) IsConflict(err error) bool {
	return errors.Cause(err) == ErrConflict
}

//
// Image
//

func (c *strm) FindImage(id string) (*model.Image, error) {
	var image model.Image
	err := c.db.One("ID", id, &image)
	return &image, errors.Wrap(err, "could not find image")
}

func (c *strm) ResolveDigest(digest string) (string, error) {
	var id string
	err := c.db.Get(BucketDigestIndex, digest, &id)
	return id, errors.Wrap(err, "could not resolve digest")
}

func (c *strm) CreateImage(image *model.Image, digest string) error {
	// The check-and-set relies on BoltDB's single-writer transaction.
	tx, err := c.db.Begin(true)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback()

	var winner string
	err = tx.Get(BucketDigestIndex, digest, &winner)
	if err == nil {
		return errors.Wrapf(ErrConflict, "digest %s already indexed", digest)
	}
	if err != storm.ErrNotFound {
		return errors.Wrap(err, "could not check digest index")
	}

	t := time.Now().UTC()
	image.SetID(uuid.Must(uuid.NewV4()).String())
	image.SetCreatedAt(t)
	image.SetUpdatedAt(t)

	if err := tx.Save(image); err != nil {
		return errors.Wrap(err, "could not save the image")
	}
	if err := tx.Set(BucketDigestIndex, digest, image.ID); err != nil {
		return errors.Wrap(err, "could not index the digest")
	}

	return errors.Wrap(tx.Commit(), "could not commit image creation")
}

//
// Chunk
//

func (c *strm) WriteChunk(id string, index int, data []byte) error {
	err := c.db.Set(BucketChunks, chunkKey(id, index), data)
	return errors.Wrapf(err, "could not write chunk %d", index)
}

func (c *strm) ReadChunk(id string, index int) ([]byte, error) {
	var data []byte
	err := c.db.Get(BucketChunks, chunkKey(id, index), &data)
	return data, errors.Wrapf(err, "could not read chunk %d", index)
}

func (c *strm) DeleteChunk(id string, index int) error {
	err := c.db.Delete(BucketChunks, chunkKey(id, index))
	if err == storm.ErrNotFound {
		return nil
	}
	return errors.Wrapf(err, "could not delete chunk %d", index)
}

// chunkKey keys a chunk record by image id and index.
// The padded index keeps the keys ordered in the underlying store.
func chunkKey(id string, index int) string {
	return fmt.Sprintf("%s/%08d", id, index)
}
