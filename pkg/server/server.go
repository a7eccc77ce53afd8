// Package server exposes the sticker pipeline over HTTP: upload a frame,
// get back the composited WebP sticker.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	stickermaker "github.com/menta2k/sticker-maker"
	"github.com/menta2k/sticker-maker/pkg/export"
	"github.com/menta2k/sticker-maker/pkg/geometry"
	"github.com/menta2k/sticker-maker/pkg/imgio"
)

var acceptedTypes = []string{"image/png", "image/jpeg", "image/webp"}

// Server hosts the sticker endpoint on top of a shared StickerMaker, so the
// segmentation backend is constructed once across requests.
type Server struct {
	maker *stickermaker.StickerMaker
	echo  *echo.Echo
}

// New creates a server around an initialized StickerMaker.
func New(maker *stickermaker.StickerMaker) *Server {
	e := echo.New()
	e.Logger.SetLevel(log.INFO)
	e.HideBanner = true

	s := &Server{maker: maker, echo: e}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": stickermaker.Version})
	})
	e.POST("/sticker", s.handleSticker)

	return s
}

// handleSticker reads the uploaded frame, applies the view options from the
// query string and responds with the encoded sticker.
func (s *Server) handleSticker(c echo.Context) error {
	content, err := io.ReadAll(c.Request().Body)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return echo.NewHTTPError(http.StatusBadRequest, "uploaded frame is empty or truncated")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read request body")
	}

	mime := mimetype.Detect(content)
	if !slices.Contains(acceptedTypes, mime.String()) {
		return echo.NewHTTPError(http.StatusBadRequest, "only PNG, JPEG or WebP frames are accepted")
	}

	img, err := imgio.DecodeBytes(content)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "frame could not be decoded")
	}

	opts := stickerOptions(c)
	sticker, err := s.maker.MakeSticker(img, opts)
	if err != nil {
		if errors.Is(err, export.ErrSizeExceeded) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "sticker exceeds the size budget at every quality step")
		}
		c.Logger().Errorf("sticker pipeline failed: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "sticker pipeline failed")
	}

	c.Response().Header().Set("Content-Disposition", "attachment; filename="+export.Filename(time.Now()))
	return c.Blob(http.StatusOK, "image/webp", sticker)
}

func stickerOptions(c echo.Context) stickermaker.StickerOptions {
	opts := stickermaker.StickerOptions{Zoom: geometry.ZoomMin}
	if v, err := strconv.ParseBool(c.QueryParam("mirror")); err == nil {
		opts.Mirrored = v
	}
	if v, err := strconv.ParseFloat(c.QueryParam("zoom"), 64); err == nil {
		opts.Zoom = geometry.ClampZoom(v)
	}
	if v, err := strconv.ParseFloat(c.QueryParam("pan_x"), 64); err == nil {
		opts.Pan.X = v
	}
	if v, err := strconv.ParseFloat(c.QueryParam("pan_y"), 64); err == nil {
		opts.Pan.Y = v
	}
	opts.Pan = opts.Pan.Clamp(opts.Zoom)
	if v, err := strconv.Atoi(c.QueryParam("brightness")); err == nil {
		opts.Brightness = geometry.ClampBrightness(v)
	}
	return opts
}

// Run starts the server and blocks until the context is canceled or an
// interrupt arrives, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}
