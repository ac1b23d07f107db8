package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/audiolibrelab/voicecards/internal/assets"
	"github.com/audiolibrelab/voicecards/internal/media"
	"github.com/audiolibrelab/voicecards/internal/service"
)

// Backend is the part of the service the server reads from.
type Backend interface {
	ListItems() ([]media.MediaItem, error)
	GetItem(id string) (media.MediaItem, bool, error)
	Status() (service.Status, error)
}

// AssetOpener opens stored assets for streaming.
type AssetOpener interface {
	Open(ref string) (*os.File, error)
}

// ItemResponse is an item as served over HTTP, with asset URLs instead of references.
type ItemResponse struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	ImageURL  string    `json:"image_url,omitempty"`
	AudioURL  string    `json:"audio_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Server is a read-only HTTP view of the gallery.
type Server struct {
	backend  Backend
	assets   AssetOpener
	registry *prometheus.Registry
	addr     string
	echo     *echo.Echo
}

// New creates a server. A nil registry disables /metrics.
func New(backend Backend, assetStore AssetOpener, registry *prometheus.Registry, addr string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		backend:  backend,
		assets:   assetStore,
		registry: registry,
		addr:     addr,
		echo:     e,
	}

	e.GET("/", s.handleIndex)
	e.GET("/api/items", s.handleItems)
	e.GET("/api/items/:id", s.handleItem)
	e.GET("/api/assets/*", s.handleAsset)
	e.GET("/api/status", s.handleStatus)
	if registry != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			ErrorHandling: promhttp.HTTPErrorOnError,
		})))
	}

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(s.addr)
	}()

	host, port, _ := net.SplitHostPort(s.addr)
	if host == "" || host == "0.0.0.0" {
		host = getLocalIP()
	}
	slog.Info("Starting voicecards web server", "addr", s.addr, "url", fmt.Sprintf("http://%s:%s", host, port))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Stopping voicecards web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func toResponse(item media.MediaItem) ItemResponse {
	r := ItemResponse{ID: item.ID, Label: item.DisplayLabel(), CreatedAt: item.CreatedAt}
	if item.HasImage() {
		r.ImageURL = "/api/assets/" + item.ImageRef
	}
	if item.HasAudio() {
		r.AudioURL = "/api/assets/" + item.AudioRef
	}
	return r
}

func (s *Server) listResponses() ([]ItemResponse, error) {
	items, err := s.backend.ListItems()
	if err != nil {
		return nil, err
	}
	out := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toResponse(item))
	}
	return out, nil
}

func (s *Server) handleItems(c echo.Context) error {
	items, err := s.listResponses()
	if err != nil {
		slog.Error("Failed to list items", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list items")
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) handleItem(c echo.Context) error {
	item, ok, err := s.backend.GetItem(c.Param("id"))
	if err != nil {
		slog.Error("Failed to load item", "item_id", c.Param("id"), "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load item")
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Item not found")
	}
	return c.JSON(http.StatusOK, toResponse(item))
}

// assetTypes covers the formats the system mime table may not know.
var assetTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".webm": "audio/webm",
	".flac": "audio/flac",
}

func (s *Server) handleAsset(c echo.Context) error {
	ref := c.Param("*")

	file, err := s.assets.Open(ref)
	switch {
	case errors.Is(err, assets.ErrInvalidRef):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid asset reference")
	case errors.Is(err, os.ErrNotExist):
		return echo.NewHTTPError(http.StatusNotFound, "Asset not found")
	case err != nil:
		slog.Error("Failed to open asset", "asset", ref, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Error opening asset")
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error accessing asset")
	}

	contentType := assetTypes[strings.ToLower(path.Ext(ref))]
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(ref))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Response().Header().Set(echo.HeaderContentType, contentType)
	c.Response().Header().Set("Accept-Ranges", "bytes")

	http.ServeContent(c.Response(), c.Request(), path.Base(ref), info.ModTime(), file)
	return nil
}

func (s *Server) handleStatus(c echo.Context) error {
	st, err := s.backend.Status()
	if err != nil {
		slog.Error("Failed to read status", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to read status")
	}
	return c.JSON(http.StatusOK, st)
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>voicecards</title>
</head>
<body>
    <h1>voicecards</h1>
    {{if not .}}<p>No items in gallery</p>{{end}}
    {{range .}}
    <figure>
        {{if .ImageURL}}<img src="{{.ImageURL}}" alt="{{.Label}}" style="max-width: 320px">{{end}}
        <figcaption>{{.Label}}</figcaption>
        {{if .AudioURL}}<audio controls src="{{.AudioURL}}"></audio>{{end}}
    </figure>
    {{end}}
</body>
</html>`))

func (s *Server) handleIndex(c echo.Context) error {
	items, err := s.listResponses()
	if err != nil {
		slog.Error("Failed to list items", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list items")
	}

	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return indexTemplate.Execute(c.Response(), items)
}

// getLocalIP returns the address other devices on the network can reach.
func getLocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
