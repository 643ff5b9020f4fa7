package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/artforge/artforge-client/pkg/api"
)

// SearchImages fetches one page of image search results.
// Page numbering starts at 1; filter is the ownership filter
// ("public", "private", "all" or empty).
func (c *Client) SearchImages(ctx context.Context, q string, page int, filter string) (api.ResultPage, error) {
	if page < 1 {
		return api.ResultPage{}, fmt.Errorf("page must be >= 1 (got %d)", page)
	}

	query := url.Values{}
	query.Set("q", q)
	query.Set("page", strconv.Itoa(page))
	if filter != "" {
		query.Set("filter", filter)
	}

	body, err := c.getBody(ctx, "/api/search/images", query)
	if err != nil {
		return api.ResultPage{}, err
	}
	return api.ParseResultPage(body)
}

// FeedImages fetches one page of the public gallery feed.
func (c *Client) FeedImages(ctx context.Context, page int) (api.ResultPage, error) {
	if page < 1 {
		return api.ResultPage{}, fmt.Errorf("page must be >= 1 (got %d)", page)
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))

	body, err := c.getBody(ctx, "/api/feed/images", query)
	if err != nil {
		return api.ResultPage{}, err
	}
	return api.ParseResultPage(body)
}

// ListUsers fetches one page of the admin user table.
func (c *Client) ListUsers(ctx context.Context, page int) ([]api.UserRecord, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	return getData[[]api.UserRecord](ctx, c, "/api/admin/users", query)
}

// SetUserSuspended toggles a user's suspension flag.
func (c *Client) SetUserSuspended(ctx context.Context, userID string, suspended bool) error {
	path := "/api/admin/users/" + url.PathEscape(userID) + "/suspend"
	_, err := sendData[api.UserRecord](ctx, c, http.MethodPost, path, map[string]any{
		"suspended": suspended,
	})
	return err
}

// AdjustCredits changes a user's credit balance by delta and returns the
// updated record.
func (c *Client) AdjustCredits(ctx context.Context, userID string, delta int) (api.UserRecord, error) {
	path := "/api/admin/users/" + url.PathEscape(userID) + "/credits"
	return sendData[api.UserRecord](ctx, c, http.MethodPost, path, map[string]any{
		"delta": delta,
	})
}

// ListPromoCodes fetches all promo codes.
func (c *Client) ListPromoCodes(ctx context.Context) ([]api.PromoCode, error) {
	return getData[[]api.PromoCode](ctx, c, "/api/admin/promo-codes", nil)
}

// CreatePromoCode creates a promo code and returns the stored record.
func (c *Client) CreatePromoCode(ctx context.Context, code api.PromoCode) (api.PromoCode, error) {
	return sendData[api.PromoCode](ctx, c, http.MethodPost, "/api/admin/promo-codes", code)
}

// DeletePromoCode removes a promo code.
func (c *Client) DeletePromoCode(ctx context.Context, code string) error {
	path := "/api/admin/promo-codes/" + url.PathEscape(code)
	resp, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// ListProviders fetches the configured image-generation providers.
func (c *Client) ListProviders(ctx context.Context) ([]api.Provider, error) {
	return getData[[]api.Provider](ctx, c, "/api/admin/providers", nil)
}

// GetProfile fetches the authenticated user's profile.
func (c *Client) GetProfile(ctx context.Context) (api.Profile, error) {
	return getData[api.Profile](ctx, c, "/api/profile", nil)
}

// UpdateProfile saves profile changes and returns the stored profile.
func (c *Client) UpdateProfile(ctx context.Context, profile api.Profile) (api.Profile, error) {
	return sendData[api.Profile](ctx, c, http.MethodPut, "/api/profile", profile)
}

// BillingSummary fetches the authenticated user's billing overview.
func (c *Client) BillingSummary(ctx context.Context) (api.BillingSummary, error) {
	return getData[api.BillingSummary](ctx, c, "/api/billing/summary", nil)
}

// getBody performs a GET and returns the response body.
func (c *Client) getBody(ctx context.Context, path string, query url.Values) ([]byte, error) {
	resp, err := c.Get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

// getData performs a GET and decodes the success envelope into T.
func getData[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	var zero T
	body, err := c.getBody(ctx, path, query)
	if err != nil {
		return zero, err
	}
	return api.ParseData[T](body)
}

// sendData sends a JSON payload and decodes the success envelope into T.
func sendData[T any](ctx context.Context, c *Client, method, path string, payload any) (T, error) {
	var zero T

	body, err := json.Marshal(payload)
	if err != nil {
		return zero, fmt.Errorf("encode payload: %w", err)
	}

	resp, err := c.do(ctx, method, path, nil, body)
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("read response body: %w", err)
	}
	return api.ParseData[T](respBody)
}
