package service

import (
	"github.com/mdouchement/imgstore/internal/cache"
	"github.com/mdouchement/imgstore/internal/storage"
)

// A Downloader serves image payloads, going through the read cache before the
// repository.
type Downloader struct {
	repository *storage.Repository
	cache      *cache.Cache
}

// NewDownloader returns a new Downloader.
func NewDownloader(repository *storage.Repository, cache *cache.Cache) *Downloader {
	return &Downloader{
		repository: repository,
		cache:      cache,
	}
}

// Fetch returns the payload and the content type of a completed image.
// The cache only holds bytes so a hit still reads the stored metadata for the
// content type.
func (s *Downloader) Fetch(id string) ([]byte, string, error) {
	if payload, ok := s.cache.Get(id); ok {
		image, err := s.repository.Metadata(id)
		if err != nil {
			return nil, "", err
		}
		return payload, image.ContentType, nil
	}

	payload, image, err := s.repository.Read(id)
	if err != nil {
		return nil, "", err
	}

	s.cache.Put(id, payload)
	return payload, image.ContentType, nil
}
