package cmd

import (
	"os"
	"strings"

	"github.com/desmos-typeset/cli/internal/cdp"
	"github.com/desmos-typeset/cli/internal/settings"
)

func getCalculatorURL() string {
	if u := os.Getenv("DESMOS_CALCULATOR_URL"); strings.TrimSpace(u) != "" {
		return strings.TrimRight(u, "/")
	}
	return cdp.DefaultCalculatorURL
}

// getCDPURL prefers the flag value over DESMOS_CDP_URL.
func getCDPURL(flag string) string {
	if strings.TrimSpace(flag) != "" {
		return flag
	}
	return strings.TrimSpace(os.Getenv("DESMOS_CDP_URL"))
}

func getSettingsPath(flag string) (string, error) {
	if strings.TrimSpace(flag) != "" {
		return flag, nil
	}
	if p := os.Getenv("DESMOS_SETTINGS_FILE"); strings.TrimSpace(p) != "" {
		return p, nil
	}
	return settings.DefaultPath()
}
