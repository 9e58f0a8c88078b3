package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zainal/disaster-siren/internal/config"
	"github.com/zainal/disaster-siren/internal/logger"
)

// Action selects the remote operation to perform.
type Action string

const (
	// ActionStatus prints the current siren state.
	ActionStatus Action = "status"
	// ActionToggle starts or stops the siren.
	ActionToggle Action = "toggle"
	// ActionCycleMode advances the selected mode.
	ActionCycleMode Action = "cycle"
	// ActionSelectMode selects a specific mode by id.
	ActionSelectMode Action = "select-mode"
	// ActionStopAnnouncement cuts a running announcement short.
	ActionStopAnnouncement Action = "stop-announcement"
)

// Options configures one siren-ctl invocation.
type Options struct {
	// ConfigPath to the settings YAML file, used when ServerURL is empty.
	ConfigPath string
	// ServerURL overrides the appliance base URL (e.g. https://siren:5000).
	ServerURL string
	// Action is the remote operation to perform.
	Action Action
	// ModeID is the target mode for ActionSelectMode.
	ModeID string
	// Insecure skips TLS certificate verification; appliances commonly run
	// on self-signed certificates.
	Insecure bool
}

// requestTimeout bounds one control request end to end.
const requestTimeout = 10 * time.Second

// errUnexpectedStatus reports a non-JSON error response.
var errUnexpectedStatus = errors.New("unexpected response status")

// modeInfo mirrors the API's mode JSON.
type modeInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Loop        bool   `json:"loop"`
}

// statusInfo mirrors the API's status JSON.
type statusInfo struct {
	Phase        string     `json:"phase"`
	SelectedMode string     `json:"selected_mode"`
	ActiveMode   *modeInfo  `json:"active_mode"`
	LastError    string     `json:"last_error"`
	Generation   uint64     `json:"generation"`
	Modes        []modeInfo `json:"modes"`
}

// commandInfo mirrors the API's command acknowledgement JSON.
type commandInfo struct {
	CorrelationID string     `json:"correlation_id"`
	Status        statusInfo `json:"status"`
}

// errorInfo mirrors the API's error JSON.
type errorInfo struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Run performs one control action against the appliance's HTTP API.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "siren-ctl")

	baseURL, err := resolveBaseURL(opts)
	if err != nil {
		return err
	}

	httpClient := newHTTPClient(opts.Insecure)

	switch opts.Action {
	case ActionStatus:
		status, err := fetchStatus(ctx, httpClient, baseURL)
		if err != nil {
			return err
		}

		printStatus(ctx, status)

		return nil
	case ActionToggle:
		return postCommand(ctx, httpClient, baseURL+"/api/toggle")
	case ActionCycleMode:
		return postCommand(ctx, httpClient, baseURL+"/api/cycle")
	case ActionSelectMode:
		if opts.ModeID == "" {
			return errors.New("mode id is required")
		}

		return postCommand(ctx, httpClient, baseURL+"/api/modes/"+url.PathEscape(opts.ModeID))
	case ActionStopAnnouncement:
		return postCommand(ctx, httpClient, baseURL+"/api/announce/stop")
	default:
		return fmt.Errorf("unknown action %q", opts.Action)
	}
}

// resolveBaseURL picks the explicit URL or derives a local one from the
// appliance settings file.
func resolveBaseURL(opts *Options) (string, error) {
	if opts.ServerURL != "" {
		base := opts.ServerURL
		if !strings.Contains(base, "://") {
			base = "http://" + base
		}

		return strings.TrimRight(base, "/"), nil
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}

	scheme := "http"
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		scheme = "https"
	}

	host, port, err := net.SplitHostPort(cfg.ListenAddress)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", cfg.ListenAddress, err)
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}

	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, port)), nil
}

// newHTTPClient builds the control client, optionally trusting any
// certificate.
func newHTTPClient(insecure bool) *http.Client {
	//nolint:exhaustruct // Default transport fields are fine for a one-shot CLI.
	client := &http.Client{Timeout: requestTimeout}

	if insecure {
		//nolint:exhaustruct,gosec // Opting out of verification is the flag's purpose.
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return client
}

// fetchStatus reads the appliance status.
func fetchStatus(ctx context.Context, client *http.Client, baseURL string) (*statusInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/status", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request status: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var status statusInfo
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}

	return &status, nil
}

// postCommand submits a command and logs the acknowledgement.
func postCommand(ctx context.Context, client *http.Client, commandURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, commandURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send command: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	var ack commandInfo
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return fmt.Errorf("decode acknowledgement: %w", err)
	}

	logger.InfoKV(ctx, "Command accepted",
		"correlation_id", ack.CorrelationID,
		"phase", ack.Status.Phase,
		"selected_mode", ack.Status.SelectedMode)

	return nil
}

// printStatus logs the appliance state in a readable form.
func printStatus(ctx context.Context, status *statusInfo) {
	active := "<none>"
	if status.ActiveMode != nil {
		active = status.ActiveMode.ID
	}

	logger.InfoKV(ctx, "Siren status",
		"phase", status.Phase,
		"selected_mode", status.SelectedMode,
		"active_mode", active,
		"last_error", status.LastError,
		"generation", status.Generation)

	for _, m := range status.Modes {
		logger.Infof(ctx, "Mode %s: %s (loop=%t)", m.ID, m.DisplayName, m.Loop)
	}
}

// decodeError turns an API error response into a Go error.
func decodeError(resp *http.Response) error {
	var apiErr errorInfo
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
		return fmt.Errorf("%w: %s", errUnexpectedStatus, resp.Status)
	}

	return fmt.Errorf("%s (%s): %s", resp.Status, apiErr.Kind, apiErr.Error)
}
