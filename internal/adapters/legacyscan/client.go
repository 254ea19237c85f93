// Package legacyscan adapts the legacy broker-scan provider, which keys
// subscribers by a numeric profile id and reports removal status as a string.
package legacyscan

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"exposurewatch/internal/adapters/apiclient"
	"exposurewatch/internal/domain"
	"exposurewatch/internal/ports"
)

const perPage = 100

// maxPages bounds pagination in case the provider misreports last_page.
const maxPages = 1000

type Client struct {
	api *apiclient.Client
}

var _ ports.ExposureSource = (*Client)(nil)

// New authenticates with the API key as the basic-auth username.
func New(cfg apiclient.Config) (*Client, error) {
	cfg.Provider = string(domain.ProviderLegacyScan)
	cfg.Auth = apiclient.BasicAuth
	api, err := apiclient.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{api: api}, nil
}

func (c *Client) Provider() domain.Provider { return domain.ProviderLegacyScan }

func (c *Client) ListScans(ctx context.Context, key domain.ProviderKey) ([]domain.Scan, error) {
	profileID, err := key.ProfileID()
	if err != nil {
		return nil, err
	}
	var scans []domain.Scan
	for page := 1; page <= maxPages; page++ {
		var resp listScansResponse
		err := c.api.Do(ctx, apiclient.Request{
			Endpoint: "list_scans",
			Method:   http.MethodGet,
			Path:     fmt.Sprintf("profiles/%d/scans", profileID),
			Query:    pageQuery(page),
		}, &resp)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Data {
			s, err := raw.normalize()
			if err != nil {
				return nil, err
			}
			scans = append(scans, s)
		}
		if resp.Meta.LastPage <= page {
			break
		}
	}
	return scans, nil
}

func (c *Client) GetScan(ctx context.Context, key domain.ProviderKey, scanID string) (domain.Scan, error) {
	profileID, err := key.ProfileID()
	if err != nil {
		return domain.Scan{}, err
	}
	var raw scanPayload
	err = c.api.Do(ctx, apiclient.Request{
		Endpoint: "get_scan",
		Method:   http.MethodGet,
		Path:     fmt.Sprintf("profiles/%d/scans/%s", profileID, url.PathEscape(scanID)),
	}, &raw)
	if err != nil {
		return domain.Scan{}, err
	}
	return raw.normalize()
}

// ListRecords fetches every result for the profile, restricted to scanIDs
// when any are given.
func (c *Client) ListRecords(ctx context.Context, key domain.ProviderKey, scanIDs []string) ([]domain.ScanRecord, error) {
	profileID, err := key.ProfileID()
	if err != nil {
		return nil, err
	}
	var records []domain.ScanRecord
	for page := 1; page <= maxPages; page++ {
		q := pageQuery(page)
		q.Add("profile_id[]", strconv.FormatInt(profileID, 10))
		for _, id := range scanIDs {
			q.Add("scan_id[]", id)
		}
		var resp listResultsResponse
		err := c.api.Do(ctx, apiclient.Request{
			Endpoint: "list_scan_results",
			Method:   http.MethodGet,
			Path:     "scan-results/",
			Query:    q,
		}, &resp)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Data {
			r, err := raw.normalize()
			if err != nil {
				return nil, err
			}
			records = append(records, r)
		}
		if resp.Meta.LastPage <= page {
			break
		}
	}
	return records, nil
}

func pageQuery(page int) url.Values {
	return url.Values{
		"per_page": {strconv.Itoa(perPage)},
		"page":     {strconv.Itoa(page)},
	}
}
