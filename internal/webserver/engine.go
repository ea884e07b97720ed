package webserver

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mdouchement/imgstore/internal/cache"
	"github.com/mdouchement/imgstore/internal/storage"
	middlewarepkg "github.com/mdouchement/imgstore/internal/webserver/middleware"
	"github.com/mdouchement/logger"
)

// A Controller is an Iversion Of Control pattern used to init the server package.
type Controller struct {
	Version    string
	Logger     logger.Logger
	Repository *storage.Repository
	Cache      *cache.Cache
}

// EchoEngine instantiates the wep server.
func EchoEngine(ctrl Controller) *echo.Echo {
	engine := echo.New()
	engine.HideBanner = true
	engine.Use(middleware.Gzip())
	engine.Use(middlewarepkg.Logger(ctrl.Logger))

	engine.HTTPErrorHandler = middlewarepkg.NewHTTPErrorHandler(ctrl.Logger)

	//
	//
	//

	router := engine.Group("")

	// Generic handlers
	//
	router.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	})
	router.GET("/", landing)
	router.GET("/index.html", landing)

	// Upload
	//
	upload := upload{
		logger:     ctrl.Logger,
		repository: ctrl.Repository,
	}
	router.POST("/upload", upload.Create)

	// Image
	//
	image := image{
		logger:     ctrl.Logger,
		repository: ctrl.Repository,
		cache:      ctrl.Cache,
	}
	router.GET("/image/:file", image.Show)

	return engine
}

// PrintRoutes prints the Echo engin exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		"":   true,
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] {
			continue
		}
		fmt.Printf("%6s %s\n", route.Method, route.Path)
	}
}
