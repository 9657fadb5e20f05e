package adsapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/adpulse-ai/platform/pkg/common/httpclient"
	"github.com/adpulse-ai/platform/pkg/common/logger"
	"github.com/adpulse-ai/platform/pkg/common/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	createContentType = "application/vnd.createasyncreportrequest.v3+json"
	maxErrorBody      = 4 << 10
)

type Config struct {
	BaseURL       string
	TokenURL      string
	ClientID      string
	ClientSecret  string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

type Client struct {
	cfg      Config
	profiles ProfileStore
	http     *http.Client
	oauth    *oauth2.Config

	mu      sync.Mutex
	sources map[uint]oauth2.TokenSource
}

func NewClient(cfg Config, profiles ProfileStore) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:      cfg,
		profiles: profiles,
		http:     httpclient.New(cfg.Timeout),
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
		},
		sources: make(map[uint]oauth2.TokenSource),
	}
}

// RequestReport asks the platform to generate a report and returns its id.
// A duplicate request yields a *DuplicateReportError carrying the existing id.
func (c *Client) RequestReport(ctx context.Context, companyID uint, period models.DateRange, reportType models.ReportType) (string, error) {
	body, err := buildCreateRequest(period, reportType)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	var resp reportResponse
	err = c.do(ctx, companyID, http.MethodPost, "/reporting/reports", createContentType, payload, &resp)
	if err != nil {
		return "", err
	}
	if resp.ReportID == "" {
		return "", errors.New("report id missing from response")
	}

	logger.Log.WithFields(logrus.Fields{
		"company_id":  companyID,
		"report_type": reportType,
		"report_id":   resp.ReportID,
	}).Info("report requested")
	return resp.ReportID, nil
}

// ReportStatus fetches the remote state of a report and, once it completed,
// downloads its rows.
func (c *Client) ReportStatus(ctx context.Context, companyID uint, reportID string) (*Report, error) {
	var resp reportResponse
	if err := c.do(ctx, companyID, http.MethodGet, "/reporting/reports/"+reportID, "", nil, &resp); err != nil {
		return nil, err
	}

	report := &Report{
		ReportID:      reportID,
		Status:        resp.Status,
		FailureReason: resp.FailureReason,
		Metadata: models.ReportMetadata{
			ReportTypeID: resp.Configuration.ReportTypeID,
			AdProduct:    resp.Configuration.AdProduct,
			StartDate:    resp.StartDate,
			EndDate:      resp.EndDate,
		},
	}
	if resp.Status != RemoteCompleted {
		return report, nil
	}
	if resp.URL == "" {
		return nil, fmt.Errorf("%w: %s", ErrReportNotReady, reportID)
	}

	rows, err := c.download(ctx, resp.URL)
	if err != nil {
		return nil, fmt.Errorf("downloading report %s: %w", reportID, err)
	}
	report.Rows = rows
	return report, nil
}

func (c *Client) do(ctx context.Context, companyID uint, method, path, contentType string, body []byte, out interface{}) error {
	profile, err := c.profiles.ProfileFor(ctx, companyID)
	if err != nil {
		return err
	}
	authed := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, c.http), c.tokenSource(profile))

	return httpclient.Retry(ctx, c.cfg.RetryAttempts, c.cfg.RetryDelay, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Amazon-Advertising-API-ClientId", c.cfg.ClientID)
		req.Header.Set("Amazon-Advertising-API-Scope", profile.ProfileID)

		resp, err := authed.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooEarly {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			if id, ok := parseDuplicate(string(raw)); ok {
				return &DuplicateReportError{ReportID: id}
			}
			return &httpclient.StatusError{Code: resp.StatusCode, Body: string(raw)}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return &httpclient.StatusError{Code: resp.StatusCode, Body: string(raw)}
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}

// tokenSource caches one refreshing token source per company. The source
// outlives any single request, so it is bound to a background context.
func (c *Client) tokenSource(profile Profile) oauth2.TokenSource {
	c.mu.Lock()
	defer c.mu.Unlock()

	if src, ok := c.sources[profile.CompanyID]; ok {
		return src
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.http)
	src := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: profile.RefreshToken})
	c.sources[profile.CompanyID] = src
	return src
}

// download fetches a completed report. The location is pre-signed, so no
// credentials are sent.
func (c *Client) download(ctx context.Context, url string) ([]models.Row, error) {
	var rows []models.Row
	err := httpclient.Retry(ctx, c.cfg.RetryAttempts, c.cfg.RetryDelay, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return &httpclient.StatusError{Code: resp.StatusCode, Body: string(raw)}
		}

		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("opening gzip stream: %w", err)
		}
		defer gz.Close()

		decoder := json.NewDecoder(gz)
		decoder.UseNumber()
		rows = nil
		return decoder.Decode(&rows)
	})
	return rows, err
}
