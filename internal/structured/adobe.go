package structured

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const DefaultAdobeBaseURL = "https://pdf-services.adobe.io"

// AdobeConfig holds PDF Services credentials and endpoints.
type AdobeConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	PollInterval time.Duration
	HTTPClient   *http.Client
}

// AdobeClient runs the PDF Services extract operation over REST: fetch a
// token, upload the source as an asset, submit an extractpdf job, poll the
// job until it finishes and download the result archive.
type AdobeClient struct {
	cfg  AdobeConfig
	http *http.Client
	log  *slog.Logger
}

func NewAdobeClient(cfg AdobeConfig, log *slog.Logger) (*AdobeClient, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("adobe: client id and secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAdobeBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Minute}
	}
	return &AdobeClient{cfg: cfg, http: hc, log: log}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type assetResponse struct {
	UploadURI string `json:"uploadUri"`
	AssetID   string `json:"assetID"`
}

type jobStatus struct {
	Status   string `json:"status"`
	Resource *struct {
		DownloadURI string `json:"downloadUri"`
	} `json:"resource"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Extract uploads srcPath and writes the result archive to archivePath.
func (c *AdobeClient) Extract(ctx context.Context, srcPath, archivePath string) error {
	src, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	asset, err := c.upload(ctx, token, src)
	if err != nil {
		return err
	}
	location, err := c.submit(ctx, token, asset)
	if err != nil {
		return err
	}
	c.log.Info("extract job submitted", "asset_id", asset, "location", location)

	downloadURI, err := c.poll(ctx, token, location)
	if err != nil {
		return err
	}
	return c.download(ctx, downloadURI, archivePath)
}

func (c *AdobeClient) token(ctx context.Context) (string, error) {
	form := url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok tokenResponse
	if err := c.doJSON(req, http.StatusOK, &tok); err != nil {
		return "", fmt.Errorf("adobe token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("adobe token: empty access token")
	}
	return tok.AccessToken, nil
}

func (c *AdobeClient) upload(ctx context.Context, token string, src []byte) (string, error) {
	body, _ := json.Marshal(map[string]string{"mediaType": "application/pdf"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/assets", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	c.authorize(req, token)
	req.Header.Set("Content-Type", "application/json")

	var asset assetResponse
	if err := c.doJSON(req, http.StatusOK, &asset); err != nil {
		return "", fmt.Errorf("adobe create asset: %w", err)
	}
	if asset.UploadURI == "" || asset.AssetID == "" {
		return "", fmt.Errorf("adobe create asset: missing upload uri or asset id")
	}

	put, err := http.NewRequestWithContext(ctx, http.MethodPut, asset.UploadURI, bytes.NewReader(src))
	if err != nil {
		return "", err
	}
	put.Header.Set("Content-Type", "application/pdf")
	resp, err := c.http.Do(put)
	if err != nil {
		return "", fmt.Errorf("adobe upload: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("adobe upload: status %d", resp.StatusCode)
	}
	return asset.AssetID, nil
}

func (c *AdobeClient) submit(ctx context.Context, token, assetID string) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"assetID":           assetID,
		"elementsToExtract": []string{"text"},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/operation/extractpdf", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	c.authorize(req, token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("adobe submit: %w", err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("adobe submit: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("adobe submit: no job location")
	}
	return location, nil
}

func (c *AdobeClient) poll(ctx context.Context, token, location string) (string, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return "", err
		}
		c.authorize(req, token)

		var st jobStatus
		if err := c.doJSON(req, http.StatusOK, &st); err != nil {
			return "", fmt.Errorf("adobe poll: %w", err)
		}
		switch strings.ToLower(st.Status) {
		case "done":
			if st.Resource == nil || st.Resource.DownloadURI == "" {
				return "", fmt.Errorf("adobe poll: job done without a download uri")
			}
			return st.Resource.DownloadURI, nil
		case "failed":
			if st.Error != nil {
				return "", fmt.Errorf("adobe extract failed: %s: %s", st.Error.Code, st.Error.Message)
			}
			return "", fmt.Errorf("adobe extract failed")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *AdobeClient) download(ctx context.Context, uri, archivePath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("adobe download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("adobe download: status %d", resp.StatusCode)
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("write archive: %w", err)
	}
	return out.Close()
}

func (c *AdobeClient) authorize(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-API-Key", c.cfg.ClientID)
}

func (c *AdobeClient) doJSON(req *http.Request, want int, v any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
