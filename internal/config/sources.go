package config

import (
	"net/url"
	"os"
)

// ValueSource represents where a setting comes from.
type ValueSource string

const (
	SourceEnv     ValueSource = "env"
	SourceConfig  ValueSource = "config"
	SourceDefault ValueSource = "default"
	SourceNone    ValueSource = "none"
)

// SourceStatus describes one upstream endpoint or credential.
type SourceStatus struct {
	Name   string      `json:"name"`
	Source ValueSource `json:"source"`
	IsSet  bool        `json:"is_set"`
	Value  string      `json:"value,omitempty"` // masked for credentials
}

// CheckSources reports the endpoints and credentials navcompare will use.
func CheckSources(cfg *Config) []SourceStatus {
	return []SourceStatus{
		checkValue("AMFI NAV URL", cfg.AMFI.URL, defaultAMFIURL, "AMFI_NAV_URL", "NAVCOMPARE_AMFI_URL"),
		checkValue("Historical NAV API", cfg.History.BaseURL, defaultHistoryURL, "NAVCOMPARE_HISTORY_BASE_URL"),
		checkValue("Local NAV file", cfg.AMFI.LocalFile, defaultLocalFile, "NAVCOMPARE_AMFI_LOCAL_FILE"),
		checkSecret("Store DSN", cfg.Store.DSN, "NAVCOMPARE_STORE_DSN", "DATABASE_URL"),
	}
}

const (
	defaultAMFIURL    = "https://www.amfiindia.com/spages/NAVAll.txt"
	defaultHistoryURL = "https://mf.captnemo.in/nav"
	defaultLocalFile  = "./data/NAVAll.txt"
)

func fromEnv(envVars ...string) bool {
	for _, e := range envVars {
		if os.Getenv(e) != "" {
			return true
		}
	}
	return false
}

func checkValue(name, value, def string, envVars ...string) SourceStatus {
	status := SourceStatus{Name: name, IsSet: value != "", Value: value}
	switch {
	case value == "":
		status.Source = SourceNone
	case fromEnv(envVars...):
		status.Source = SourceEnv
	case value == def:
		status.Source = SourceDefault
	default:
		status.Source = SourceConfig
	}
	return status
}

func checkSecret(name, value string, envVars ...string) SourceStatus {
	status := SourceStatus{Name: name, IsSet: value != ""}
	if value == "" {
		status.Source = SourceNone
		return status
	}
	if fromEnv(envVars...) {
		status.Source = SourceEnv
	} else {
		status.Source = SourceConfig
	}
	status.Value = MaskDSN(value)
	return status
}

// MaskDSN hides the password of a connection URL. Non-URL values are masked
// like an API key, showing only the first and last 3 characters.
func MaskDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Redacted()
	}
	if len(dsn) <= 8 {
		return "***"
	}
	return dsn[:3] + "..." + dsn[len(dsn)-3:]
}
