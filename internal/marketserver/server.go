package marketserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mintbay/gomart/internal/market"
	"github.com/mintbay/gomart/pkg/contentstore"
	"github.com/mintbay/gomart/pkg/ratelimit"
)

type Config struct {
	Ledger *market.Ledger
	Store  *contentstore.Store // optional; store endpoints 404 when nil
}

// Server is the HTTP face of the marketplace: thin JSON glue over the
// ledger's operations plus the local content store and the event
// stream.
type Server struct {
	ledger *market.Ledger
	store  *contentstore.Store

	// Per-address throttle on the dev faucet.
	faucetLimiter *ratelimit.KeyedLimiter
}

func New(cfg Config) (*Server, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	return &Server{
		ledger:        cfg.Ledger,
		store:         cfg.Store,
		faucetLimiter: ratelimit.NewKeyedLimiter(10, 1),
	}, nil
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.wrap(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	api := r.Group("/api")

	registries := api.Group("/registries")
	registries.GET("/", s.wrap(s.handleRegistriesList))
	registries.POST("/", s.wrap(s.handleRegistriesCreate))
	registry := registries.Group("/:registry")
	registry.POST("/tokens", s.wrap(s.handleTokenMint))
	registry.GET("/tokens/:tokenID", s.wrap(s.handleTokenGet))
	registry.POST("/tokens/:tokenID/transfer", s.wrap(s.handleTokenTransfer))

	mkt := api.Group("/market")
	mkt.GET("/items", s.wrap(s.handleItemsList))
	mkt.POST("/items", s.wrap(s.handleItemCreate))
	mkt.POST("/items/:itemID/buy", s.wrap(s.handleItemBuy))
	mkt.GET("/listing-fee", s.wrap(s.handleListingFeeGet))
	mkt.PUT("/listing-fee", s.wrap(s.handleListingFeeSet))

	bank := api.Group("/bank")
	bank.POST("/deposit", s.wrap(s.handleDeposit))
	bank.GET("/balances/:address", s.wrap(s.handleBalance))

	api.GET("/receipts", s.wrap(s.handleReceiptsList))

	api.POST("/store", s.wrap(s.handleStoreAdd))
	api.GET("/store/:cid", s.wrap(s.handleStoreGet))

	r.GET("/ws/events", s.wrap(s.handleEventsWS))

	return r
}

type paramsKeyType string

const paramsKey paramsKeyType = "gomart_path_params"

// wrap adapts net/http handlers to gin, injecting path params into the
// request context.
func (s *Server) wrap(h func(http.ResponseWriter, *http.Request)) gin.HandlerFunc {
	return func(c *gin.Context) {
		m := map[string]string{}
		for _, p := range c.Params {
			m[p.Key] = p.Value
		}
		ctx := context.WithValue(c.Request.Context(), paramsKey, m)
		c.Request = c.Request.WithContext(ctx)
		h(c.Writer, c.Request)
	}
}

func urlParam(r *http.Request, key string) string {
	if m, ok := r.Context().Value(paramsKey).(map[string]string); ok {
		return m[key]
	}
	return ""
}
