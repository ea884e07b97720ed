package webserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Landing page with a plain upload form. Not part of the storage core.
const landingHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>imgstore</title>
</head>
<body>
  <h1>imgstore</h1>
  <p>Content-addressable image hosting. Identical files are stored once.</p>
  <form action="/upload" method="post" enctype="multipart/form-data">
    <input type="file" name="file" multiple>
    <input type="submit" value="Upload">
  </form>
</body>
</html>
`

func landing(c echo.Context) error {
	return c.HTML(http.StatusOK, landingHTML)
}
