package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
)

// Balances maps Kraken asset codes (XXBT, ZUSD) to amounts.
type Balances map[string]decimal.Decimal

// Balance returns the account balances.
func (c *Client) Balance(ctx context.Context) (Balances, error) {
	result, err := c.doPrivate(ctx, "/0/private/Balance", nil)
	if err != nil {
		return nil, err
	}

	var raw map[string]string
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("kraken: decode balances: %w", err)
	}

	balances := make(Balances, len(raw))
	for asset, amount := range raw {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("kraken: parse balance %s: %w", asset, err)
		}
		balances[asset] = d
	}
	return balances, nil
}

// OrderRequest describes an order to place.
type OrderRequest struct {
	Pair      string
	Side      string // buy or sell
	OrderType string // market or limit
	Price     decimal.Decimal
	Volume    decimal.Decimal
}

// AddOrder places the order and returns the venue transaction ID.
func (c *Client) AddOrder(ctx context.Context, req OrderRequest) (string, error) {
	params := url.Values{}
	params.Set("pair", req.Pair)
	params.Set("type", req.Side)
	params.Set("ordertype", req.OrderType)
	params.Set("volume", req.Volume.String())
	if req.OrderType == "limit" {
		params.Set("price", req.Price.String())
	}

	result, err := c.doPrivate(ctx, "/0/private/AddOrder", params)
	if err != nil {
		return "", err
	}

	var resp struct {
		TxID []string `json:"txid"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return "", fmt.Errorf("kraken: decode add order: %w", err)
	}
	if len(resp.TxID) == 0 {
		return "", fmt.Errorf("kraken: add order returned no txid")
	}
	return resp.TxID[0], nil
}

// OrderInfo reflects the venue's view of a placed order.
type OrderInfo struct {
	Status     string // pending, open, closed, canceled, expired
	Volume     decimal.Decimal
	VolumeExec decimal.Decimal
	AvgPrice   decimal.Decimal
}

// FullyFilled reports whether the venue executed the entire volume.
func (o OrderInfo) FullyFilled() bool {
	return o.Status == "closed" && o.VolumeExec.Equal(o.Volume)
}

// QueryOrder re-reads actual fill state for a transaction ID.
func (c *Client) QueryOrder(ctx context.Context, txid string) (OrderInfo, error) {
	params := url.Values{}
	params.Set("txid", txid)

	result, err := c.doPrivate(ctx, "/0/private/QueryOrders", params)
	if err != nil {
		return OrderInfo{}, err
	}

	var raw map[string]struct {
		Status     string `json:"status"`
		Volume     string `json:"vol"`
		VolumeExec string `json:"vol_exec"`
		AvgPrice   string `json:"price"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return OrderInfo{}, fmt.Errorf("kraken: decode query orders: %w", err)
	}

	entry, ok := raw[txid]
	if !ok {
		return OrderInfo{}, fmt.Errorf("kraken: order %s not found", txid)
	}

	var info OrderInfo
	info.Status = entry.Status
	if info.Volume, err = decimal.NewFromString(entry.Volume); err != nil {
		return OrderInfo{}, fmt.Errorf("kraken: parse order volume: %w", err)
	}
	if info.VolumeExec, err = decimal.NewFromString(entry.VolumeExec); err != nil {
		return OrderInfo{}, fmt.Errorf("kraken: parse executed volume: %w", err)
	}
	if info.AvgPrice, err = decimal.NewFromString(entry.AvgPrice); err != nil {
		return OrderInfo{}, fmt.Errorf("kraken: parse fill price: %w", err)
	}
	return info, nil
}
