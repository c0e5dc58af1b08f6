package http

import (
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirebot/internal/backend"
	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/history"
	"github.com/vovakirdan/wirebot/internal/identity"
	"github.com/vovakirdan/wirebot/internal/metrics"
	"github.com/vovakirdan/wirebot/internal/store"
)

// BotStatus is the view of the running backend the status page reports on.
type BotStatus interface {
	Mode() string
	Status() backend.Status
	Rooms() []identity.Room
}

// ActiveTransfers lists the streams currently in flight.
type ActiveTransfers interface {
	Active() []string
	Get(id string) (*core.Stream, bool)
}

// Deps are the components the status server reads from. Nil fields
// disable the routes that need them.
type Deps struct {
	Bot       BotStatus
	Transfers ActiveTransfers
	Ledger    store.TransferStore
	History   *history.Store
	Metrics   *metrics.Metrics
}

// NewServer builds the status HTTP server.
func NewServer(addr string, deps Deps, logger *zerolog.Logger) *stdhttp.Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	h := NewStatusHandlers(deps, logger)
	router.GET("/health", h.Health)
	router.GET("/status", h.Status)
	router.GET("/transfers", h.Transfers)
	router.GET("/history/:user", h.History)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	return &stdhttp.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
