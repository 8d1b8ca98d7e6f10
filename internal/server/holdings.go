package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/escrow-market/internal/api"
	"github.com/rickgao/escrow-market/internal/ledger"
	"github.com/rickgao/escrow-market/internal/model"
	"github.com/rickgao/escrow-market/internal/registry"
)

// Holdings is the ledger and registry surface served next to the engine:
// balance and custody queries plus class management.
type Holdings interface {
	Balance(ctx context.Context, account model.AccountID) (model.Amount, error)
	TotalSupply(ctx context.Context) (model.Amount, error)
	TokensOf(ctx context.Context, owner model.AccountID) ([]model.AssetID, error)
	Class(ctx context.Context, id model.ClassID) (registry.Class, bool, error)

	CreateClass(ctx context.Context, owner model.AccountID, metadata []byte) (model.ClassID, error)
	Mint(ctx context.Context, caller, owner model.AccountID, class model.ClassID, metadata []byte) (model.TokenID, error)
	Burn(ctx context.Context, owner model.AccountID, asset model.AssetID) error
	DestroyClass(ctx context.Context, owner model.AccountID, class model.ClassID) error
}

// MemoryHoldings serves Holdings from the in-memory ledger and registry.
type MemoryHoldings struct {
	Ledger   *ledger.Memory
	Registry *registry.Memory
}

var _ Holdings = MemoryHoldings{}

func (h MemoryHoldings) Balance(_ context.Context, account model.AccountID) (model.Amount, error) {
	return h.Ledger.Balance(account), nil
}

func (h MemoryHoldings) TotalSupply(context.Context) (model.Amount, error) {
	return h.Ledger.TotalSupply(), nil
}

func (h MemoryHoldings) TokensOf(_ context.Context, owner model.AccountID) ([]model.AssetID, error) {
	return h.Registry.TokensOf(owner), nil
}

func (h MemoryHoldings) Class(_ context.Context, id model.ClassID) (registry.Class, bool, error) {
	c, ok := h.Registry.Class(id)
	return c, ok, nil
}

func (h MemoryHoldings) CreateClass(_ context.Context, owner model.AccountID, metadata []byte) (model.ClassID, error) {
	return h.Registry.CreateClass(owner, metadata)
}

func (h MemoryHoldings) Mint(_ context.Context, caller, owner model.AccountID, class model.ClassID, metadata []byte) (model.TokenID, error) {
	return h.Registry.Mint(caller, owner, class, metadata)
}

func (h MemoryHoldings) Burn(_ context.Context, owner model.AccountID, asset model.AssetID) error {
	return h.Registry.Burn(owner, asset)
}

func (h MemoryHoldings) DestroyClass(_ context.Context, owner model.AccountID, class model.ClassID) error {
	return h.Registry.DestroyClass(owner, class)
}

func classParam(c *gin.Context) (model.ClassID, bool) {
	class, err := strconv.ParseUint(c.Param("class"), 10, 64)
	if err != nil {
		badRequest(c, "invalid class id")
		return 0, false
	}
	return class, true
}

// accountParam accepts a canonical account id or a name.
func accountParam(c *gin.Context) model.AccountID {
	return model.ResolveAccountID(c.Param("account"))
}

func (s *Server) balance(c *gin.Context) {
	account := accountParam(c)
	amount, err := s.holdings.Balance(c.Request.Context(), account)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.BalanceResponse{Account: account.String(), Balance: amount})
}

func (s *Server) tokens(c *gin.Context) {
	account := accountParam(c)
	assets, err := s.holdings.TokensOf(c.Request.Context(), account)
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := api.TokensResponse{Account: account.String(), Tokens: make([]api.Asset, 0, len(assets))}
	for _, a := range assets {
		out.Tokens = append(out.Tokens, api.FromAsset(a))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) supply(c *gin.Context) {
	total, err := s.holdings.TotalSupply(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.SupplyResponse{TotalSupply: total})
}

func (s *Server) getClass(c *gin.Context) {
	id, ok := classParam(c)
	if !ok {
		return
	}
	s.writeClass(c, http.StatusOK, id)
}

func (s *Server) writeClass(c *gin.Context, status int, id model.ClassID) {
	class, found, err := s.holdings.Class(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !found {
		s.respondError(c, registry.ErrClassNotFound)
		return
	}
	c.JSON(status, api.Class{
		ClassID:       id,
		Owner:         class.Owner.String(),
		TotalIssuance: class.TotalIssuance,
		Metadata:      class.Metadata,
	})
}

func (s *Server) createClass(c *gin.Context) {
	var req api.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	var id model.ClassID
	if !s.exec(c, "create_class", func(ctx context.Context) (err error) {
		id, err = s.holdings.CreateClass(ctx, caller(c), req.Metadata)
		return err
	}) {
		return
	}
	s.writeClass(c, http.StatusCreated, id)
}

func (s *Server) mint(c *gin.Context) {
	class, ok := classParam(c)
	if !ok {
		return
	}
	var req api.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	owner := caller(c)
	if req.Owner != "" {
		owner = model.ResolveAccountID(req.Owner)
	}

	var token model.TokenID
	if s.exec(c, "mint", func(ctx context.Context) (err error) {
		token, err = s.holdings.Mint(ctx, caller(c), owner, class, req.Metadata)
		return err
	}) {
		c.JSON(http.StatusCreated, api.FromAsset(model.AssetID{Class: class, Token: token}))
	}
}

func (s *Server) burn(c *gin.Context) {
	asset, valid := assetParam(c)
	if !valid {
		return
	}
	if s.exec(c, "burn", func(ctx context.Context) error {
		return s.holdings.Burn(ctx, caller(c), asset)
	}) {
		writeOK(c)
	}
}

func (s *Server) destroyClass(c *gin.Context) {
	class, ok := classParam(c)
	if !ok {
		return
	}
	if s.exec(c, "destroy_class", func(ctx context.Context) error {
		return s.holdings.DestroyClass(ctx, caller(c), class)
	}) {
		writeOK(c)
	}
}
