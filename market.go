package bg

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	marketListPath    = "/mall-magic-c/internet/c2c/v2/list"
	marketPublishPath = "/mall-magic-c/internet/c2c/v1/publish"
	orderCreatePath   = "/mall-magic-c/internet/c2c/v1/order/create"

	marketSortType = "TIME_DESC"
)

type MarketItem struct {
	ID          int64  `json:"c2cItemsId"`
	Name        string `json:"c2cItemsName"`
	Price       string `json:"showPrice"`
	MarketPrice string `json:"showMarketPrice"`
	SellerUID   int64  `json:"uid"`
	SellerName  string `json:"uname"`
}

func (item *MarketItem) PriceFen() (int64, error) {
	return ParsePriceFen(item.Price)
}

type MarketListResult struct {
	Items  []*MarketItem
	NextID string
}

type marketListResponse struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Items  []*MarketItem `json:"data"`
		NextID string        `json:"nextId"`
	} `json:"data"`
}

type marketOpResponse struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    struct {
		OrderID int64 `json:"orderId"`
	} `json:"data"`
}

// ListMarketItems fetches one page of current listings; pass the returned
// NextID to fetch the following page, empty string for the first.
func (c *Client) ListMarketItems(ctx context.Context, nextID string) (*MarketListResult, error) {
	cred, err := c.loadCredential()
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]interface{}{
		"sortType": marketSortType,
		"nextId":   nextID,
	})
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.mallBase+marketListPath, bytes.NewReader(body), cred)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}

	if err != nil {
		return nil, err
	}

	var response marketListResponse
	if err = json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	if response.Code != 0 {
		return nil, &ApiError{Code: response.Code, Message: response.Message}
	}

	return &MarketListResult{
		Items:  response.Data.Items,
		NextID: response.Data.NextID,
	}, nil
}

func (c *Client) PublishItem(ctx context.Context, itemID int64, priceFen int64) error {
	cred, err := c.loadCredential()
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]interface{}{
		"c2cItemsId": itemID,
		"price":      FormatPriceFen(priceFen),
		"csrf":       cred.CsrfToken,
	})
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.mallBase+marketPublishPath, bytes.NewReader(body), cred)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}

	if err != nil {
		return err
	}

	var response marketOpResponse
	if err = json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return err
	}

	if response.Code != 0 {
		return &ApiError{Code: response.Code, Message: response.Message}
	}

	return nil
}

// BuyItems purchases, strictly one at a time, every item matching all
// filters. It stops at the first failure and reports how many purchases
// completed before it.
func (c *Client) BuyItems(ctx context.Context, items []*MarketItem, filters ...Filter) (int, error) {
	cred, err := c.loadCredential()
	if err != nil {
		return 0, err
	}

	bought := 0
	for _, item := range items {
		if !matchAll(item, filters) {
			continue
		}

		if err := c.buyItem(ctx, item, cred); err != nil {
			return bought, err
		}
		bought++

		c.log.Info("bought item",
			zap.Int64("id", item.ID),
			zap.String("name", item.Name),
			zap.String("price", item.Price))
	}

	return bought, nil
}

func (c *Client) buyItem(ctx context.Context, item *MarketItem, cred *Credential) error {
	// Client-generated token so a resubmitted order cannot double-buy.
	body, err := json.Marshal(map[string]interface{}{
		"c2cItemsId": item.ID,
		"totalPrice": item.Price,
		"orderToken": uuid.NewString(),
		"csrf":       cred.CsrfToken,
	})
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.mallBase+orderCreatePath, bytes.NewReader(body), cred)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}

	if err != nil {
		return err
	}

	var response marketOpResponse
	if err = json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return err
	}

	if response.Code != 0 {
		return &ApiError{Code: response.Code, Message: response.Message}
	}

	return nil
}
