package webserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/imgstore/internal/storage"
	"github.com/mdouchement/imgstore/internal/webserver/serializer"
	"github.com/mdouchement/imgstore/internal/webserver/service"
	"github.com/mdouchement/imgstore/internal/webserver/weberror"
	"github.com/mdouchement/logger"
)

type upload struct {
	logger     logger.Logger
	repository *storage.Repository
}

func (h *upload) Create(c echo.Context) error {
	c.Set("handler_method", "upload.Create")

	form, err := c.MultipartForm()
	if err != nil {
		return weberror.BadRequest("could not parse multipart form")
	}

	files := form.File["file"]
	if len(files) == 0 {
		return weberror.BadRequest("no file part in request")
	}

	//

	uploader := service.NewUploader(h.repository, c.Scheme()+"://"+c.Request().Host)

	failed := false
	results := make([]*service.Result, 0, len(files))
	for _, fh := range files {
		result := uploader.Upload(fh)
		if result.Status == service.StatusError {
			failed = true
			h.logger.Errorf("upload.Create: could not ingest %s: %s", result.Name, result.Err)
		}
		results = append(results, result)
	}

	//

	code := http.StatusOK
	if failed {
		code = http.StatusInternalServerError
	}
	return c.JSON(code, serializer.UploadResults(results))
}
