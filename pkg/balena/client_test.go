package balena

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewSupervisorClientRequiresCredentials(t *testing.T) {
	if _, err := NewSupervisorClient("", "key", ""); err == nil {
		t.Error("Expected error without address")
	}
	if _, err := NewSupervisorClient("http://127.0.0.1:48484", "", ""); err == nil {
		t.Error("Expected error without api key")
	}
}

func TestGetState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/device" || r.URL.Query().Get("apikey") != "secret" {
			http.Error(w, "bad request", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":         "Idle",
			"update_pending": true,
			"ip_address":     "192.168.1.7 10.114.102.1",
			"os_version":     "balenaOS 5.3.0",
		})
	}))
	defer srv.Close()

	c, err := NewSupervisorClient(srv.URL+"/", "secret", "")
	if err != nil {
		t.Fatal(err)
	}
	if c.LastAddress() != "" {
		t.Errorf("Expected no address before the first poll, got %q", c.LastAddress())
	}
	state, err := c.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if state.Status != "Idle" || !state.UpdatePending {
		t.Errorf("unexpected state %+v", state)
	}
	if ip := state.PrimaryIP(); ip != "192.168.1.7" {
		t.Errorf("Expected primary ip 192.168.1.7, got %q", ip)
	}
	if got := c.LastAddress(); got != "192.168.1.7" {
		t.Errorf("Expected cached address 192.168.1.7, got %q", got)
	}
}

func TestRestart(t *testing.T) {
	tests := []struct {
		name     string
		appID    string
		wantPath string
		wantApp  string
	}{
		{"reboot without app id", "", "/v1/reboot", ""},
		{"restart app", "1234", "/v1/restart", "1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath, gotApp string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					w.WriteHeader(http.StatusMethodNotAllowed)
					return
				}
				gotPath = r.URL.Path
				var body map[string]string
				json.NewDecoder(r.Body).Decode(&body)
				gotApp = body["appId"]
				w.WriteHeader(http.StatusAccepted)
			}))
			defer srv.Close()

			c, _ := NewSupervisorClient(srv.URL, "secret", tt.appID)
			if err := c.Restart(context.Background()); err != nil {
				t.Fatalf("Restart failed: %v", err)
			}
			if gotPath != tt.wantPath || gotApp != tt.wantApp {
				t.Errorf("got %s app=%q, want %s app=%q", gotPath, gotApp, tt.wantPath, tt.wantApp)
			}
		})
	}
}

func TestRestartError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := NewSupervisorClient(srv.URL, "secret", "")
	if err := c.Restart(context.Background()); err == nil {
		t.Error("Expected error on 503")
	}
}

func TestStatusCode(t *testing.T) {
	for status, want := range map[string]int64{"Idle": 1, "Downloading": 2, "Installing": 3, "Rebooting": 0} {
		if got := StatusCode(status); got != want {
			t.Errorf("StatusCode(%q) = %d, want %d", status, got, want)
		}
	}
}
