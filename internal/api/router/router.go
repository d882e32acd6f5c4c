package router

import (
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/wb-go/wbf/ginext"

	"github.com/Lalitha-balijepalli/FileFlexor/internal/api/handlers/file"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/api/respond"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/middleware"
)

var errNotFound = errors.New("not found")

// Setup builds the engine. Paths outside /api are served from staticDir when
// it exists, falling back to index.html for client-side routes.
func Setup(h *file.Handler, staticDir string) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.RequestID())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	api := r.Group("/api")

	api.POST("/upload", h.Upload)              // uploading a file
	api.POST("/process", h.Process)            // compressing or converting an upload
	api.GET("/download/*filename", h.Download) // downloading a result
	api.GET("/health", h.Health)               // liveness

	static := staticHandler(staticDir)
	r.NoRoute(func(c *ginext.Context) {
		p := c.Request.URL.Path
		switch {
		case p == "/api" || strings.HasPrefix(p, "/api/"):
			h.NotFound(c)
		case static == nil:
			respond.Fail(c, http.StatusNotFound, errNotFound)
		default:
			static(c)
		}
	})

	return r
}

// staticHandler serves the built front-end, or returns nil when dir is not a
// directory.
func staticHandler(dir string) func(*ginext.Context) {
	if dir == "" {
		return nil
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil
	}

	index := filepath.Join(dir, "index.html")

	return func(c *ginext.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Status(http.StatusNotFound)
			return
		}

		// path.Clean on a rooted path never climbs above dir.
		target := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+c.Request.URL.Path)))
		if fi, err := os.Stat(target); err == nil && fi.Mode().IsRegular() {
			c.File(target)
			return
		}

		c.File(index)
	}
}
