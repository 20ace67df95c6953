package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"checkin/entity"
)

type TallyReader interface {
	SuccessCount() int
	FailureCount() int
	Total() int
	History() []entity.ScanResult
}

type ConnectivityReader interface {
	Connected() bool
}

// Server is the station's local status surface: health, metrics, the session
// tally and the reachability flag. Read-only; it never gates the controllers.
type Server struct {
	addr  string
	e     *echo.Echo
	tally TallyReader
	net   ConnectivityReader
}

func NewServer(addr string, tally TallyReader, net ConnectivityReader) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(otelecho.Middleware("checkin-station"))

	server := &Server{
		addr:  addr,
		e:     e,
		tally: tally,
		net:   net,
	}

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/tally", server.GetTally)
	e.GET("/network", server.GetNetwork)

	return server
}

type tallyResponse struct {
	SuccessCount int                 `json:"success_count"`
	FailureCount int                 `json:"failure_count"`
	Total        int                 `json:"total"`
	History      []entity.ScanResult `json:"history"`
}

func (s *Server) GetTally(c echo.Context) error {
	return c.JSON(http.StatusOK, tallyResponse{
		SuccessCount: s.tally.SuccessCount(),
		FailureCount: s.tally.FailureCount(),
		Total:        s.tally.Total(),
		History:      s.tally.History(),
	})
}

type networkResponse struct {
	Connected bool `json:"connected"`
}

func (s *Server) GetNetwork(c echo.Context) error {
	return c.JSON(http.StatusOK, networkResponse{
		Connected: s.net.Connected(),
	})
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		if err := s.e.Shutdown(context.Background()); err != nil {
			logrus.WithError(err).Error("failed to shutdown HTTP server")
		}
	}()

	logrus.WithField("addr", s.addr).Info("[HTTP] station server listening")
	if err := s.e.Start(s.addr); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
