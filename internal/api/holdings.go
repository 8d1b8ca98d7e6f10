package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rickgao/escrow-market/internal/model"
)

func accountPath(account string) string {
	return "/v1/accounts/" + url.PathEscape(account)
}

// Balance fetches the balance of an account, given as an id or a name.
func (c *Client) Balance(ctx context.Context, account string) (*BalanceResponse, error) {
	var out BalanceResponse
	if err := c.get(ctx, accountPath(account)+"/balance", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tokens lists the assets an account holds.
func (c *Client) Tokens(ctx context.Context, account string) (*TokensResponse, error) {
	var out TokensResponse
	if err := c.get(ctx, accountPath(account)+"/tokens", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Supply fetches the total fungible supply.
func (c *Client) Supply(ctx context.Context) (*SupplyResponse, error) {
	var out SupplyResponse
	if err := c.get(ctx, "/v1/supply", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Class fetches one asset class.
func (c *Client) Class(ctx context.Context, id model.ClassID) (*Class, error) {
	var out Class
	if err := c.get(ctx, fmt.Sprintf("/v1/classes/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateClass registers a class owned by the caller.
func (c *Client) CreateClass(ctx context.Context, metadata []byte) (*Class, error) {
	var out Class
	if err := c.send(ctx, http.MethodPost, "/v1/classes", CreateClassRequest{Metadata: metadata}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Mint creates a token in a class the caller owns.
func (c *Client) Mint(ctx context.Context, class model.ClassID, req MintRequest) (*Asset, error) {
	var out Asset
	if err := c.send(ctx, http.MethodPost, fmt.Sprintf("/v1/classes/%d/tokens", class), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Burn destroys a token the caller holds.
func (c *Client) Burn(ctx context.Context, asset model.AssetID) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("/v1/tokens/%d/%d", asset.Class, asset.Token), nil, nil)
}

// DestroyClass removes an empty class the caller owns.
func (c *Client) DestroyClass(ctx context.Context, class model.ClassID) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("/v1/classes/%d", class), nil, nil)
}
