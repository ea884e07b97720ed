package webserver

import (
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/imgstore/internal/cache"
	"github.com/mdouchement/imgstore/internal/storage"
	"github.com/mdouchement/imgstore/internal/webserver/service"
	"github.com/mdouchement/imgstore/internal/webserver/weberror"
	"github.com/mdouchement/logger"
)

type image struct {
	logger     logger.Logger
	repository *storage.Repository
	cache      *cache.Cache
}

func (h *image) Show(c echo.Context) error {
	c.Set("handler_method", "image.Show")

	// The extension is decorative, only the id matters.
	file := c.Param("file")
	id := strings.TrimSuffix(file, path.Ext(file))

	//

	downloader := service.NewDownloader(h.repository, h.cache)

	payload, contentType, err := downloader.Fetch(id)
	switch {
	case storage.IsNotFound(err) || storage.IsIncomplete(err):
		return weberror.NotFound("image not found")
	case storage.IsIntegrity(err):
		h.logger.Errorf("image.Show: storage consistency fault on %s: %s", id, err)
		return weberror.New(http.StatusInternalServerError, "storage inconsistency")
	case err != nil:
		return err
	}

	return c.Blob(http.StatusOK, contentType, payload)
}
