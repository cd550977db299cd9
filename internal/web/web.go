// Package web serves a read-only json view of a running download.
package web

import (
	"errors"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"tget/internal/download"
	"tget/internal/meta"
)

type Status interface {
	Progress() download.Progress
}

type statusResponse struct {
	Name        string            `json:"name"`
	InfoHash    string            `json:"info_hash"`
	Progress    download.Progress `json:"progress"`
	PieceLength int64             `json:"piece_length"`
}

type torrentResponse struct {
	Name        string      `json:"name"`
	InfoHash    string      `json:"info_hash"`
	Announce    []string    `json:"announce"`
	Files       []meta.File `json:"files"`
	TotalLength int64       `json:"total_length"`
	PieceLength int64       `json:"piece_length"`
	NumPieces   uint32      `json:"num_pieces"`
	Private     bool        `json:"private"`
}

func New(m *meta.Metadata, s Status, debug bool) http.Handler {
	server := echo.New()
	server.HideBanner = true
	server.HidePort = true
	server.HTTPErrorHandler = errorHandler

	server.Use(middleware.Recover())
	server.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug().Str("uri", v.URI).Int("status", v.Status).Dur("latency", v.Latency).Msg("http request")
			return nil
		},
	}))

	server.GET("/api/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, statusResponse{
			Name:        m.Name,
			InfoHash:    m.Hash.Hex(),
			PieceLength: m.PieceLength,
			Progress:    s.Progress(),
		})
	})

	server.GET("/api/torrent", func(c echo.Context) error {
		return c.JSON(http.StatusOK, torrentResponse{
			Name:        m.Name,
			InfoHash:    m.Hash.Hex(),
			Announce:    m.AnnounceList,
			Files:       m.Files,
			TotalLength: m.TotalLength,
			PieceLength: m.PieceLength,
			NumPieces:   m.NumPieces,
			Private:     m.Private,
		})
	})

	if debug {
		server.Debug = true
		addPprof(server)
	}

	return server
}

func addPprof(e *echo.Echo) {
	g := e.Group("/debug/pprof")

	g.GET("/", echo.WrapHandler(http.HandlerFunc(pprof.Index)))
	g.GET("/cmdline", echo.WrapHandler(http.HandlerFunc(pprof.Cmdline)))
	g.GET("/profile", echo.WrapHandler(http.HandlerFunc(pprof.Profile)))
	g.GET("/trace", echo.WrapHandler(http.HandlerFunc(pprof.Trace)))
	g.Any("/symbol", echo.WrapHandler(http.HandlerFunc(pprof.Symbol)))
	g.GET("/:name", func(c echo.Context) error {
		pprof.Handler(c.Param("name")).ServeHTTP(c.Response(), c.Request())
		return nil
	})
}

// Serve runs the handler on addr until Shutdown is called on the returned server.
func Serve(addr string, h http.Handler) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Msgf("status server listening on http://%s/api/status", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Msg("status server stopped")
		}
	}()

	return srv
}
