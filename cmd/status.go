package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/desmos-typeset/cli/internal/settings"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type checkStatus string

const (
	statusOK      checkStatus = "ok"
	statusWarning checkStatus = "warning"
	statusFailed  checkStatus = "failed"
	statusSkipped checkStatus = "skipped"
)

type statusCheck struct {
	Name   string      `json:"name"`
	Status checkStatus `json:"status"`
	Detail string      `json:"detail"`
}

type statusReport struct {
	Status checkStatus   `json:"status"`
	Checks []statusCheck `json:"checks"`
}

// StatusCmd checks what the other commands depend on.
type StatusCmd struct {
	client        *http.Client
	calculatorURL string
	cdpURL        string
	settingsPath  string
	out           io.Writer
}

func (s StatusCmd) Run(ctx context.Context, output string) error {
	if err := validateOutput(output); err != nil {
		return err
	}

	report := statusReport{Checks: []statusCheck{
		s.checkCalculator(ctx),
		s.checkDevTools(ctx),
		s.checkSettings(),
	}}
	report.Status = statusOK
	for _, c := range report.Checks {
		if c.Status == statusFailed {
			report.Status = statusFailed
			break
		}
		if c.Status == statusWarning {
			report.Status = statusWarning
		}
	}

	if output == "json" {
		enc := json.NewEncoder(s.out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printStatus(s.out, report)
	return nil
}

func (s StatusCmd) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("request failed: %s", resp.Status)
	}
	return resp, nil
}

func (s StatusCmd) checkCalculator(ctx context.Context) statusCheck {
	c := statusCheck{Name: "Calculator"}
	resp, err := s.get(ctx, s.calculatorURL)
	if err != nil {
		c.Status, c.Detail = statusFailed, err.Error()
		return c
	}
	resp.Body.Close()
	c.Status, c.Detail = statusOK, s.calculatorURL
	return c
}

// devToolsVersionURL maps a DevTools websocket or http URL to its
// /json/version endpoint.
func devToolsVersionURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/json/version"}).String(), nil
}

func (s StatusCmd) checkDevTools(ctx context.Context) statusCheck {
	c := statusCheck{Name: "DevTools"}
	if s.cdpURL == "" {
		c.Status, c.Detail = statusSkipped, "DESMOS_CDP_URL not set; a local Chrome will be launched"
		return c
	}
	versionURL, err := devToolsVersionURL(s.cdpURL)
	if err != nil {
		c.Status, c.Detail = statusFailed, err.Error()
		return c
	}
	resp, err := s.get(ctx, versionURL)
	if err != nil {
		c.Status, c.Detail = statusFailed, err.Error()
		return c
	}
	defer resp.Body.Close()

	var version struct {
		Browser string `json:"Browser"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		c.Status, c.Detail = statusFailed, fmt.Sprintf("invalid response: %v", err)
		return c
	}
	c.Status, c.Detail = statusOK, version.Browser
	return c
}

func (s StatusCmd) checkSettings() statusCheck {
	c := statusCheck{Name: "Settings"}
	if _, err := os.Stat(s.settingsPath); errors.Is(err, fs.ErrNotExist) {
		c.Status, c.Detail = statusWarning, fmt.Sprintf("%s does not exist; defaults apply", s.settingsPath)
		return c
	}
	if _, err := settings.Open(s.settingsPath); err != nil {
		c.Status, c.Detail = statusFailed, err.Error()
		return c
	}
	c.Status, c.Detail = statusOK, s.settingsPath
	return c
}

var statusDisplay = map[checkStatus]struct {
	label string
	rgb   pterm.RGB
}{
	statusOK:      {label: "OK", rgb: pterm.NewRGB(31, 163, 130)},
	statusWarning: {label: "Warning", rgb: pterm.NewRGB(245, 158, 11)},
	statusFailed:  {label: "Failed", rgb: pterm.NewRGB(239, 68, 68)},
	statusSkipped: {label: "Skipped", rgb: pterm.NewRGB(128, 128, 128)},
}

func coloredDot(rgb pterm.RGB) string {
	return rgb.Sprint("●")
}

func printStatus(w io.Writer, report statusReport) {
	d := statusDisplay[report.Status]
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  desmos status: %s\n", d.rgb.Sprint(d.label))
	fmt.Fprintln(w)
	for _, c := range report.Checks {
		cd := statusDisplay[c.Status]
		fmt.Fprintf(w, "    %s %-12s %-8s %s\n", coloredDot(cd.rgb), c.Name, cd.label, c.Detail)
	}
	fmt.Fprintln(w)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the calculator, DevTools endpoint and settings file",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringP("output", "o", "", "Output format (json)")
	statusCmd.Flags().String("cdp-url", "", "DevTools URL of a running Chrome (default $DESMOS_CDP_URL)")
	statusCmd.Flags().String("file", "", "Settings file (default $DESMOS_SETTINGS_FILE or the user config directory)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	cdpURL, _ := cmd.Flags().GetString("cdp-url")
	file, _ := cmd.Flags().GetString("file")

	settingsPath, err := getSettingsPath(file)
	if err != nil {
		return err
	}
	s := StatusCmd{
		client:        &http.Client{Timeout: 10 * time.Second},
		calculatorURL: getCalculatorURL(),
		cdpURL:        getCDPURL(cdpURL),
		settingsPath:  settingsPath,
		out:           os.Stdout,
	}
	return s.Run(cmd.Context(), output)
}
