package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/escrow-market/internal/api"
	"github.com/rickgao/escrow-market/internal/ledger"
	"github.com/rickgao/escrow-market/internal/market"
	"github.com/rickgao/escrow-market/internal/model"
	"github.com/rickgao/escrow-market/internal/registry"
)

var (
	seller = model.DeriveAccountID("seller")
	bidder = model.DeriveAccountID("bidder")
	poor   = model.DeriveAccountID("poor")

	testAsset = model.AssetID{Class: 1, Token: 7}
)

func init() {
	gin.SetMode(gin.TestMode)
}

// tokenMap treats each token as the name of an account.
type tokenMap map[string]model.AccountID

func (m tokenMap) Verify(token string) (model.AccountID, error) {
	if a, ok := m[token]; ok {
		return a, nil
	}
	return model.ZeroAccount, errors.New("unknown token")
}

type testClock struct{ now model.Timestamp }

func (c *testClock) Now() model.Timestamp { return c.now }

type harness struct {
	server *Server
	ledger *ledger.Memory
	reg    *registry.Memory
	clock  *testClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ledger: ledger.NewMemory(),
		reg:    registry.NewMemory(),
		clock:  &testClock{now: 1_000},
	}
	engine, err := market.New(market.DefaultConfig(), market.Deps{
		Ledger:   h.ledger,
		Registry: h.reg,
		Clock:    h.clock,
	}, nil)
	if err != nil {
		t.Fatalf("market.New failed: %v", err)
	}

	h.server, err = New(Config{
		InstanceID:  "test",
		CustodianID: market.DefaultCustodianID,
		MetricsPath: "/metrics",
	}, Deps{
		Market:   market.NewSerial(engine),
		Verifier: tokenMap{"seller": seller, "bidder": bidder, "poor": poor},
		Holdings: MemoryHoldings{Ledger: h.ledger, Registry: h.reg},
	}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := h.reg.SeedToken(context.Background(), seller, testAsset); err != nil {
		t.Fatalf("SeedToken failed: %v", err)
	}
	if err := h.ledger.Mint(bidder, 10_000); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	return h
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	if code == "" {
		return
	}
	var e api.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if e.Code != code {
		t.Errorf("code = %q, want %q", e.Code, code)
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %s: %v", rec.Body.String(), err)
	}
	return v
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Config{}, Deps{Verifier: tokenMap{}}, nil); err == nil {
		t.Error("expected error without market")
	}
	if _, err := New(Config{}, Deps{Market: &market.Serial{}}, nil); err == nil {
		t.Error("expected error without verifier")
	}
}

func TestServer_Health(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/health", "", nil)
	expectStatus(t, rec, http.StatusOK, "")

	health := decode[api.HealthResponse](t, rec)
	if health.Status != "ok" || health.Instance != "test" {
		t.Errorf("health = %+v, want ok for instance test", health)
	}
}

func TestServer_Custodian(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/v1/custodian", "", nil)
	expectStatus(t, rec, http.StatusOK, "")

	got := decode[api.CustodianResponse](t, rec)
	want := market.CustodianAccount(market.DefaultCustodianID).String()
	if got.Account != want || got.CustodianID != market.DefaultCustodianID {
		t.Errorf("custodian = %+v, want account %s", got, want)
	}
}

func TestServer_Metrics(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodGet, "/health", "", nil)
	rec := h.do(t, http.MethodGet, "/metrics", "", nil)
	expectStatus(t, rec, http.StatusOK, "")
	if !bytes.Contains(rec.Body.Bytes(), []byte("escrow_market_http_requests_total")) {
		t.Error("metrics output missing escrow_market_http_requests_total")
	}
}

func TestServer_Authentication(t *testing.T) {
	h := newHarness(t)
	open := api.OpenAuctionRequest{ClassID: 1, TokenID: 7, BasePrice: 100, BidDuration: 100}

	expectStatus(t, h.do(t, http.MethodPost, "/v1/auctions", "", open), http.StatusUnauthorized, CodeUnauthorized)
	expectStatus(t, h.do(t, http.MethodPost, "/v1/auctions", "forged", open), http.StatusUnauthorized, CodeUnauthorized)
}

func TestServer_AuctionFlow(t *testing.T) {
	h := newHarness(t)
	path := "/v1/auctions/1/7"

	rec := h.do(t, http.MethodPost, "/v1/auctions", "seller",
		api.OpenAuctionRequest{ClassID: 1, TokenID: 7, BasePrice: 100, BidDuration: 100})
	expectStatus(t, rec, http.StatusCreated, "")
	opened := decode[api.SellListing](t, rec)
	if opened.Seller != seller.String() || opened.CurrentPrice != 100 || opened.EndTime != 1_100 {
		t.Errorf("opened = %+v", opened)
	}

	expectStatus(t, h.do(t, http.MethodPost, path+"/bids", "seller", api.BidRequest{Price: 150}), http.StatusForbidden, "OwnerCannotBid")
	expectStatus(t, h.do(t, http.MethodPost, path+"/bids", "bidder", api.BidRequest{Price: 100}), http.StatusConflict, "TooLowBidPrice")
	expectStatus(t, h.do(t, http.MethodPost, path+"/bids", "poor", api.BidRequest{Price: 150}), http.StatusPaymentRequired, CodeInsufficientBalance)

	rec = h.do(t, http.MethodPost, path+"/bids", "bidder", api.BidRequest{Price: 150})
	expectStatus(t, rec, http.StatusOK, "")
	if got := decode[api.SellListing](t, rec); got.Winner != bidder.String() || got.CurrentPrice != 150 {
		t.Errorf("after bid = %+v, want winner bidder at 150", got)
	}

	expectStatus(t, h.do(t, http.MethodDelete, path, "seller", nil), http.StatusConflict, "CannotCancel")
	expectStatus(t, h.do(t, http.MethodPost, path+"/claim", "bidder", nil), http.StatusConflict, "SellIsNotEnded")

	rec = h.do(t, http.MethodGet, "/v1/auctions", "", nil)
	expectStatus(t, rec, http.StatusOK, "")
	if got := decode[api.AuctionsResponse](t, rec); len(got.Auctions) != 1 {
		t.Errorf("auctions = %d, want 1", len(got.Auctions))
	}

	h.clock.now = 1_101
	expectStatus(t, h.do(t, http.MethodPost, path+"/claim", "seller", nil), http.StatusForbidden, "OnlyWinnerCanClaim")
	expectStatus(t, h.do(t, http.MethodPost, path+"/claim", "bidder", nil), http.StatusOK, "")

	if owner, _ := h.reg.OwnerOf(testAsset); owner != bidder {
		t.Errorf("owner = %s, want bidder", owner)
	}
	if got := h.ledger.Balance(seller); got != 150 {
		t.Errorf("seller balance = %d, want 150", got)
	}
	expectStatus(t, h.do(t, http.MethodGet, path, "", nil), http.StatusNotFound, "SellItemNotExist")
}

func TestServer_OpenValidation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		token  string
		body   any
		status int
		code   string
	}{
		{"zero price", "seller", api.OpenAuctionRequest{ClassID: 1, TokenID: 7, BasePrice: 0, BidDuration: 100}, http.StatusBadRequest, "InvalidBasePrice"},
		{"short window", "seller", api.OpenAuctionRequest{ClassID: 1, TokenID: 7, BasePrice: 10, BidDuration: 1}, http.StatusBadRequest, "InvalidBidTime"},
		{"not owner", "bidder", api.OpenAuctionRequest{ClassID: 1, TokenID: 7, BasePrice: 10, BidDuration: 100}, http.StatusForbidden, "OnlyOwnerCanSellNFT"},
		{"bad body", "seller", "not an object", http.StatusBadRequest, CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, h.do(t, http.MethodPost, "/v1/auctions", tt.token, tt.body), tt.status, tt.code)
		})
	}
}

func TestServer_BadAssetPath(t *testing.T) {
	h := newHarness(t)
	expectStatus(t, h.do(t, http.MethodGet, "/v1/auctions/x/7", "", nil), http.StatusBadRequest, CodeInvalidRequest)
	expectStatus(t, h.do(t, http.MethodPost, "/v1/rentals/1/-1/rent", "bidder", nil), http.StatusBadRequest, CodeInvalidRequest)
}

func TestServer_RentalFlow(t *testing.T) {
	h := newHarness(t)
	path := "/v1/rentals/1/7"

	rec := h.do(t, http.MethodPost, "/v1/rentals", "seller",
		api.OfferRentalRequest{ClassID: 1, TokenID: 7, Duration: 3_600, Collateral: 500, Price: 50})
	expectStatus(t, rec, http.StatusCreated, "")
	if got := decode[api.RentListing](t, rec); got.State != "available" || got.Renter != "" {
		t.Errorf("offered = %+v", got)
	}

	expectStatus(t, h.do(t, http.MethodPost, path+"/rent", "seller", nil), http.StatusForbidden, "RenterMustNotBeLeaser")
	expectStatus(t, h.do(t, http.MethodPost, path+"/repay", "bidder", nil), http.StatusConflict, "ItemIsNotRenting")

	rec = h.do(t, http.MethodPost, path+"/rent", "bidder", nil)
	expectStatus(t, rec, http.StatusOK, "")
	rented := decode[api.RentListing](t, rec)
	if rented.Renter != bidder.String() || rented.Deadline != 1_000+3_600 {
		t.Errorf("rented = %+v", rented)
	}

	expectStatus(t, h.do(t, http.MethodDelete, path, "seller", nil), http.StatusConflict, "ItemIsRenting")
	expectStatus(t, h.do(t, http.MethodPost, path+"/liquidate", "seller", nil), http.StatusConflict, "RentIsNotExpired")

	rec = h.do(t, http.MethodGet, "/v1/rentals", "", nil)
	expectStatus(t, rec, http.StatusOK, "")
	if got := decode[api.RentalsResponse](t, rec); len(got.Rentals) != 1 {
		t.Errorf("rentals = %d, want 1", len(got.Rentals))
	}

	expectStatus(t, h.do(t, http.MethodPost, path+"/repay", "bidder", nil), http.StatusOK, "")
	if owner, _ := h.reg.OwnerOf(testAsset); owner != seller {
		t.Errorf("owner = %s, want seller", owner)
	}
	if got := h.ledger.Balance(bidder); got != 10_000-50 {
		t.Errorf("bidder balance = %d, want %d", got, 10_000-50)
	}
	expectStatus(t, h.do(t, http.MethodGet, path, "", nil), http.StatusNotFound, "RentItemNotExist")
}

func TestServer_LiquidateAndCancelOffer(t *testing.T) {
	h := newHarness(t)
	path := "/v1/rentals/1/7"
	offer := api.OfferRentalRequest{ClassID: 1, TokenID: 7, Duration: 3_600, Collateral: 500, Price: 50}

	expectStatus(t, h.do(t, http.MethodPost, "/v1/rentals", "seller", offer), http.StatusCreated, "")
	expectStatus(t, h.do(t, http.MethodDelete, path, "bidder", nil), http.StatusForbidden, "OnlyOwnerCanCancelRent")
	expectStatus(t, h.do(t, http.MethodDelete, path, "seller", nil), http.StatusOK, "")

	expectStatus(t, h.do(t, http.MethodPost, "/v1/rentals", "seller", offer), http.StatusCreated, "")
	expectStatus(t, h.do(t, http.MethodPost, path+"/rent", "bidder", nil), http.StatusOK, "")

	h.clock.now = 1_000 + 3_601
	expectStatus(t, h.do(t, http.MethodPost, path+"/repay", "bidder", nil), http.StatusConflict, "RentIsExpired")
	expectStatus(t, h.do(t, http.MethodPost, path+"/liquidate", "bidder", nil), http.StatusForbidden, "OnlyLeaserCanLiquidate")
	expectStatus(t, h.do(t, http.MethodPost, path+"/liquidate", "seller", nil), http.StatusOK, "")

	if got := h.ledger.Balance(seller); got != 50+500 {
		t.Errorf("seller balance = %d, want 550", got)
	}
	if owner, _ := h.reg.OwnerOf(testAsset); owner != bidder {
		t.Errorf("owner = %s, want renter to keep the asset", owner)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", market.ErrInvalidRentPrice, http.StatusBadRequest, "InvalidRentPrice"},
		{"authorization", market.ErrOnlyRenterCanRepay, http.StatusForbidden, "OnlyRenterCanRepay"},
		{"not exist", market.ErrRentItemNotExist, http.StatusNotFound, "RentItemNotExist"},
		{"state", market.ErrNotInBidDuration, http.StatusConflict, "NotInBidDuration"},
		{"wrapped balance", fmt.Errorf("pay seller: %w", ledger.ErrInsufficientBalance), http.StatusPaymentRequired, CodeInsufficientBalance},
		{"overflow", ledger.ErrBalanceOverflow, http.StatusUnprocessableEntity, CodeBalanceOverflow},
		{"token", registry.ErrTokenNotFound, http.StatusUnprocessableEntity, CodeTokenNotFound},
		{"permission", registry.ErrNoPermission, http.StatusUnprocessableEntity, CodeNoPermission},
		{"class", registry.ErrClassNotFound, http.StatusNotFound, CodeClassNotFound},
		{"class not empty", registry.ErrCannotDestroyClass, http.StatusConflict, CodeClassNotEmpty},
		{"metadata", registry.ErrMetadataTooLarge, http.StatusBadRequest, CodeMetadataTooLarge},
		{"ids", registry.ErrNoAvailableTokenID, http.StatusConflict, CodeIDsExhausted},
		{"rollback", errors.Join(ledger.ErrInsufficientBalance, market.ErrRollbackFailed), http.StatusInternalServerError, CodeRollbackFailed},
		{"canceled", context.Canceled, http.StatusServiceUnavailable, CodeUnavailable},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := classify(tt.err)
			if status != tt.status || code != tt.code {
				t.Errorf("classify() = %d %s, want %d %s", status, code, tt.status, tt.code)
			}
		})
	}
}

func TestServer_StartStop(t *testing.T) {
	h := newHarness(t)
	h.server.cfg.Addr = "127.0.0.1:0"

	if err := h.server.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + h.server.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := h.server.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
