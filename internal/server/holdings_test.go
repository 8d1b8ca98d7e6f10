package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"testing"

	"github.com/rickgao/escrow-market/internal/api"
	"github.com/rickgao/escrow-market/internal/market"
	"github.com/rickgao/escrow-market/internal/registry"
)

func TestServer_AccountQueries(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/v1/accounts/bidder/balance", "", nil)
	expectStatus(t, rec, http.StatusOK, "")
	if got := decode[api.BalanceResponse](t, rec); got.Account != bidder.String() || got.Balance != 10_000 {
		t.Errorf("balance = %+v, want bidder with 10000", got)
	}

	// Canonical ids resolve to the same account as names.
	rec = h.do(t, http.MethodGet, "/v1/accounts/"+seller.String()+"/tokens", "", nil)
	expectStatus(t, rec, http.StatusOK, "")
	tokens := decode[api.TokensResponse](t, rec)
	if len(tokens.Tokens) != 1 || tokens.Tokens[0].Asset() != testAsset {
		t.Errorf("tokens = %+v, want [%v]", tokens.Tokens, testAsset)
	}

	rec = h.do(t, http.MethodGet, "/v1/accounts/nobody/tokens", "", nil)
	expectStatus(t, rec, http.StatusOK, "")
	if got := decode[api.TokensResponse](t, rec); got.Tokens == nil || len(got.Tokens) != 0 {
		t.Errorf("tokens for empty account = %#v, want empty list", got.Tokens)
	}

	rec = h.do(t, http.MethodGet, "/v1/supply", "", nil)
	expectStatus(t, rec, http.StatusOK, "")
	if got := decode[api.SupplyResponse](t, rec); got.TotalSupply != 10_000 {
		t.Errorf("supply = %d, want 10000", got.TotalSupply)
	}

	// Escrowed assets show up under the custodian.
	expectStatus(t, h.do(t, http.MethodPost, "/v1/auctions", "seller",
		api.OpenAuctionRequest{ClassID: 1, TokenID: 7, BasePrice: 100, BidDuration: 100}), http.StatusCreated, "")
	rec = h.do(t, http.MethodGet, "/v1/accounts/seller/tokens", "", nil)
	if got := decode[api.TokensResponse](t, rec); len(got.Tokens) != 0 {
		t.Errorf("seller tokens while listed = %+v, want none", got.Tokens)
	}
	custodian := market.CustodianAccount(market.DefaultCustodianID).String()
	rec = h.do(t, http.MethodGet, "/v1/accounts/"+custodian+"/tokens", "", nil)
	if got := decode[api.TokensResponse](t, rec); len(got.Tokens) != 1 {
		t.Errorf("custodian tokens = %+v, want the listed asset", got.Tokens)
	}
}

func TestServer_ClassLifecycle(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/v1/classes/1", "", nil)
	expectStatus(t, rec, http.StatusOK, "")
	if got := decode[api.Class](t, rec); got.Owner != seller.String() || got.TotalIssuance != 1 {
		t.Errorf("seeded class = %+v, want seller with issuance 1", got)
	}
	expectStatus(t, h.do(t, http.MethodGet, "/v1/classes/99", "", nil), http.StatusNotFound, CodeClassNotFound)
	expectStatus(t, h.do(t, http.MethodGet, "/v1/classes/x", "", nil), http.StatusBadRequest, CodeInvalidRequest)

	expectStatus(t, h.do(t, http.MethodPost, "/v1/classes", "", api.CreateClassRequest{}), http.StatusUnauthorized, CodeUnauthorized)
	expectStatus(t, h.do(t, http.MethodPost, "/v1/classes", "bidder",
		api.CreateClassRequest{Metadata: make([]byte, registry.MaxMetadata+1)}), http.StatusBadRequest, CodeMetadataTooLarge)

	rec = h.do(t, http.MethodPost, "/v1/classes", "bidder", api.CreateClassRequest{Metadata: []byte("art")})
	expectStatus(t, rec, http.StatusCreated, "")
	class := decode[api.Class](t, rec)
	if class.Owner != bidder.String() || !bytes.Equal(class.Metadata, []byte("art")) || class.TotalIssuance != 0 {
		t.Errorf("created class = %+v", class)
	}
	if class.ClassID == testAsset.Class {
		t.Errorf("created class reused seeded id %d", class.ClassID)
	}
	base := "/v1/classes/" + strconv.FormatUint(class.ClassID, 10)

	expectStatus(t, h.do(t, http.MethodPost, base+"/tokens", "seller", api.MintRequest{}), http.StatusUnprocessableEntity, CodeNoPermission)

	rec = h.do(t, http.MethodPost, base+"/tokens", "bidder", api.MintRequest{Owner: "poor"})
	expectStatus(t, rec, http.StatusCreated, "")
	minted := decode[api.Asset](t, rec)
	if minted.ClassID != class.ClassID {
		t.Errorf("minted = %+v, want class %d", minted, class.ClassID)
	}
	if owner, _ := h.reg.OwnerOf(minted.Asset()); owner != poor {
		t.Errorf("minted owner = %s, want poor", owner)
	}

	expectStatus(t, h.do(t, http.MethodDelete, base, "bidder", nil), http.StatusConflict, CodeClassNotEmpty)

	tokenPath := fmt.Sprintf("/v1/tokens/%d/%d", minted.ClassID, minted.TokenID)
	expectStatus(t, h.do(t, http.MethodDelete, tokenPath, "bidder", nil), http.StatusUnprocessableEntity, CodeNoPermission)
	expectStatus(t, h.do(t, http.MethodDelete, tokenPath, "poor", nil), http.StatusOK, "")
	expectStatus(t, h.do(t, http.MethodDelete, tokenPath, "poor", nil), http.StatusUnprocessableEntity, CodeTokenNotFound)

	expectStatus(t, h.do(t, http.MethodDelete, base, "seller", nil), http.StatusUnprocessableEntity, CodeNoPermission)
	expectStatus(t, h.do(t, http.MethodDelete, base, "bidder", nil), http.StatusOK, "")
	expectStatus(t, h.do(t, http.MethodGet, base, "", nil), http.StatusNotFound, CodeClassNotFound)
}

func TestServer_HoldingsOptional(t *testing.T) {
	h := newHarness(t)
	srv, err := New(Config{}, Deps{Market: h.server.market, Verifier: h.server.verifier}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	h.server = srv

	expectStatus(t, h.do(t, http.MethodGet, "/v1/supply", "", nil), http.StatusNotFound, "")
	expectStatus(t, h.do(t, http.MethodGet, "/v1/auctions", "", nil), http.StatusOK, "")
}
