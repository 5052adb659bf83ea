package balena

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

type SupervisorClient struct {
	Address string
	APIKey  string
	AppID   string
	Client  *http.Client

	lastIP atomic.Value // string
}

type DeviceState struct {
	Status           string  `json:"status"`
	UpdatePending    bool    `json:"update_pending"`
	DownloadProgress float64 `json:"download_progress"`
	OSVersion        string  `json:"os_version"`
	MacAddress       string  `json:"mac_address"`
	IPAddress        string  `json:"ip_address"`
}

// PrimaryIP returns the first address of the space separated ip_address field.
func (d *DeviceState) PrimaryIP() string {
	fields := strings.Fields(d.IPAddress)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// NewSupervisorClient talks to the balena supervisor at address. Both
// address and key are injected by balena as BALENA_SUPERVISOR_ADDRESS and
// BALENA_SUPERVISOR_API_KEY.
func NewSupervisorClient(address, apiKey, appID string) (*SupervisorClient, error) {
	if address == "" || apiKey == "" {
		return nil, fmt.Errorf("supervisor address and api key must be set")
	}

	return &SupervisorClient{
		Address: strings.TrimRight(address, "/"),
		APIKey:  apiKey,
		AppID:   appID,
		Client:  &http.Client{Timeout: 5 * time.Second},
	}, nil
}

func (c *SupervisorClient) endpoint(path string) string {
	return fmt.Sprintf("%s%s?apikey=%s", c.Address, path, url.QueryEscape(c.APIKey))
}

func (c *SupervisorClient) GetState(ctx context.Context) (*DeviceState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/v1/device"), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get supervisor state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("supervisor returned status %d", resp.StatusCode)
	}

	var state DeviceState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode supervisor response: %w", err)
	}

	if ip := state.PrimaryIP(); ip != "" {
		c.lastIP.Store(ip)
	}
	return &state, nil
}

// LastAddress returns the primary IP from the most recent successful
// GetState, or "" before the first one.
func (c *SupervisorClient) LastAddress() string {
	ip, _ := c.lastIP.Load().(string)
	return ip
}

// Restart asks the supervisor to restart the application containers, or to
// reboot the device when no application id is configured.
func (c *SupervisorClient) Restart(ctx context.Context) error {
	path := "/v1/reboot"
	body := []byte("{}")
	if c.AppID != "" {
		path = "/v1/restart"
		var err error
		body, err = json.Marshal(map[string]string{"appId": c.AppID})
		if err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to request restart: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("supervisor returned status %d", resp.StatusCode)
	}
	return nil
}
