package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/escrow-market/internal/api"
	"github.com/rickgao/escrow-market/internal/metrics"
	"github.com/rickgao/escrow-market/internal/model"
	"github.com/rickgao/escrow-market/internal/version"
)

func (s *Server) routes() {
	r := s.engine

	r.GET("/health", s.health)
	if s.cfg.MetricsPath != "" {
		r.GET(s.cfg.MetricsPath, gin.WrapH(metrics.Handler()))
	}

	v1 := r.Group("/v1")
	v1.GET("/custodian", s.custodian)
	v1.GET("/auctions", s.listAuctions)
	v1.GET("/auctions/:class/:token", s.getAuction)
	v1.GET("/rentals", s.listRentals)
	v1.GET("/rentals/:class/:token", s.getRental)
	if s.feed != nil {
		v1.GET("/stream", gin.WrapH(s.feed))
	}
	if s.holdings != nil {
		v1.GET("/supply", s.supply)
		v1.GET("/accounts/:account/balance", s.balance)
		v1.GET("/accounts/:account/tokens", s.tokens)
		v1.GET("/classes/:class", s.getClass)
	}

	authed := v1.Group("", Authenticate(s.verifier))
	authed.POST("/auctions", s.openAuction)
	authed.POST("/auctions/:class/:token/bids", s.bid)
	authed.POST("/auctions/:class/:token/claim", s.claim)
	authed.DELETE("/auctions/:class/:token", s.cancelAuction)
	authed.POST("/rentals", s.offerRental)
	authed.POST("/rentals/:class/:token/rent", s.rent)
	authed.POST("/rentals/:class/:token/repay", s.repay)
	authed.POST("/rentals/:class/:token/liquidate", s.liquidate)
	authed.DELETE("/rentals/:class/:token", s.cancelRental)
	if s.holdings != nil {
		authed.POST("/classes", s.createClass)
		authed.POST("/classes/:class/tokens", s.mint)
		authed.DELETE("/classes/:class", s.destroyClass)
		authed.DELETE("/tokens/:class/:token", s.burn)
	}
}

// exec runs one engine call, records its outcome and writes any error.
// It reports whether the call succeeded.
func (s *Server) exec(c *gin.Context, op string, fn func(ctx context.Context) error) bool {
	start := time.Now()
	err := fn(c.Request.Context())

	result := metrics.ResultOK
	if err != nil {
		result = s.respondError(c, err)
	}
	metrics.RecordOperation(op, result, time.Since(start))
	return err == nil
}

func assetParam(c *gin.Context) (model.AssetID, bool) {
	class, err := strconv.ParseUint(c.Param("class"), 10, 64)
	if err != nil {
		badRequest(c, "invalid class id")
		return model.AssetID{}, false
	}
	token, err := strconv.ParseUint(c.Param("token"), 10, 64)
	if err != nil {
		badRequest(c, "invalid token id")
		return model.AssetID{}, false
	}
	return model.AssetID{Class: class, Token: token}, true
}

// -----------------------------------------------------------------------------
// Public
// -----------------------------------------------------------------------------

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Status:   "ok",
		Instance: s.cfg.InstanceID,
		Version:  version.Version,
		Commit:   version.Commit,
		Uptime:   time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) custodian(c *gin.Context) {
	c.JSON(http.StatusOK, api.CustodianResponse{
		CustodianID: s.cfg.CustodianID,
		Account:     s.market.Custodian().String(),
	})
}

func (s *Server) listAuctions(c *gin.Context) {
	listings, err := s.market.SellListings(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := api.AuctionsResponse{Auctions: make([]api.SellListing, 0, len(listings))}
	for _, l := range listings {
		out.Auctions = append(out.Auctions, api.FromSellListing(l))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getAuction(c *gin.Context) {
	asset, ok := assetParam(c)
	if !ok {
		return
	}
	l, err := s.market.SellListing(c.Request.Context(), asset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromSellListing(l))
}

func (s *Server) listRentals(c *gin.Context) {
	listings, err := s.market.RentListings(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := api.RentalsResponse{Rentals: make([]api.RentListing, 0, len(listings))}
	for _, l := range listings {
		out.Rentals = append(out.Rentals, api.FromRentListing(l))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getRental(c *gin.Context) {
	asset, ok := assetParam(c)
	if !ok {
		return
	}
	l, err := s.market.RentListing(c.Request.Context(), asset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromRentListing(l))
}

func writeOK(c *gin.Context) {
	c.JSON(http.StatusOK, api.StatusResponse{Status: "ok"})
}

// -----------------------------------------------------------------------------
// Auctions
// -----------------------------------------------------------------------------

func (s *Server) openAuction(c *gin.Context) {
	var req api.OpenAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	asset := model.AssetID{Class: req.ClassID, Token: req.TokenID}
	var l model.SellListing
	if s.exec(c, "open", func(ctx context.Context) (err error) {
		l, err = s.market.Open(ctx, caller(c), asset, req.BasePrice, req.Delay, req.BidDuration)
		return err
	}) {
		c.JSON(http.StatusCreated, api.FromSellListing(l))
	}
}

func (s *Server) bid(c *gin.Context) {
	asset, valid := assetParam(c)
	if !valid {
		return
	}
	var req api.BidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	var l model.SellListing
	if s.exec(c, "bid", func(ctx context.Context) (err error) {
		l, err = s.market.Bid(ctx, caller(c), asset, req.Price)
		return err
	}) {
		c.JSON(http.StatusOK, api.FromSellListing(l))
	}
}

func (s *Server) claim(c *gin.Context) {
	asset, valid := assetParam(c)
	if !valid {
		return
	}
	if s.exec(c, "claim", func(ctx context.Context) error {
		return s.market.Claim(ctx, caller(c), asset)
	}) {
		writeOK(c)
	}
}

func (s *Server) cancelAuction(c *gin.Context) {
	asset, valid := assetParam(c)
	if !valid {
		return
	}
	if s.exec(c, "cancel", func(ctx context.Context) error {
		return s.market.Cancel(ctx, caller(c), asset)
	}) {
		writeOK(c)
	}
}

// -----------------------------------------------------------------------------
// Rentals
// -----------------------------------------------------------------------------

func (s *Server) offerRental(c *gin.Context) {
	var req api.OfferRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	asset := model.AssetID{Class: req.ClassID, Token: req.TokenID}
	var l model.RentListing
	if s.exec(c, "offer", func(ctx context.Context) (err error) {
		l, err = s.market.Offer(ctx, caller(c), asset, req.Duration, req.Collateral, req.Price)
		return err
	}) {
		c.JSON(http.StatusCreated, api.FromRentListing(l))
	}
}

func (s *Server) rent(c *gin.Context) {
	asset, valid := assetParam(c)
	if !valid {
		return
	}
	var l model.RentListing
	if s.exec(c, "rent", func(ctx context.Context) (err error) {
		l, err = s.market.Rent(ctx, caller(c), asset)
		return err
	}) {
		c.JSON(http.StatusOK, api.FromRentListing(l))
	}
}

func (s *Server) repay(c *gin.Context) {
	asset, valid := assetParam(c)
	if !valid {
		return
	}
	if s.exec(c, "repay", func(ctx context.Context) error {
		return s.market.Repay(ctx, caller(c), asset)
	}) {
		writeOK(c)
	}
}

func (s *Server) liquidate(c *gin.Context) {
	asset, valid := assetParam(c)
	if !valid {
		return
	}
	if s.exec(c, "liquidate", func(ctx context.Context) error {
		return s.market.Liquidate(ctx, caller(c), asset)
	}) {
		writeOK(c)
	}
}

func (s *Server) cancelRental(c *gin.Context) {
	asset, valid := assetParam(c)
	if !valid {
		return
	}
	if s.exec(c, "cancel_offer", func(ctx context.Context) error {
		return s.market.CancelOffer(ctx, caller(c), asset)
	}) {
		writeOK(c)
	}
}
