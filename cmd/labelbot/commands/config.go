package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"labelbot/internal/browser"
	"labelbot/internal/components/chrono"
	"labelbot/internal/components/telemetry"
	"labelbot/internal/registry"
	"labelbot/internal/twitter"
	"labelbot/internal/workdir"
	"labelbot/pkg/configutil"

	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	ModeBrowser = "browser"
	ModeDirect  = "direct"
)

// Config is read from config.json5, DelaySecs is the minimum number of seconds
// between two posts and Mode is either "browser" or "direct".
type Config struct {
	DelaySecs            int                 `json:"delay_secs"`
	WorkingDir           string              `json:"working_dir"`
	Mode                 string              `json:"mode"`
	BrowserBin           string              `json:"browser_bin"`
	Stealth              bool                `json:"stealth"`
	DetailTimeoutSeconds int                 `json:"detail_timeout_seconds"`
	RequestsPerSecond    float64             `json:"requests_per_second"`
	CloudflareBypass     bool                `json:"cloudflare_bypass"`
	BaseUrl              string              `json:"base_url"`
	OriginHashtags       map[string]string   `json:"origin_hashtags"`
	Twitter              twitter.Credentials `json:"twitter"`
}

func defaultConfig() Config {
	return Config{
		DelaySecs:            60,
		WorkingDir:           workdir.DefaultPath,
		Mode:                 ModeBrowser,
		DetailTimeoutSeconds: 10,
		RequestsPerSecond:    2,
		BaseUrl:              registry.DefaultBaseUrl,
	}
}

// loadConfig reads the config file over the defaults, a missing file leaves the defaults.
func loadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfigWithDefaults(path, defaultConfig())
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("no config file, using defaults", "path", path)
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}
	if cfg.Mode != ModeBrowser && cfg.Mode != ModeDirect {
		return Config{}, fmt.Errorf("unknown mode %q, expected %s or %s", cfg.Mode, ModeBrowser, ModeDirect)
	}
	return cfg, nil
}

// parseRanges parses the positional LOW-HIGH arguments.
func parseRanges(args []string) ([]registry.ClassTypeRange, error) {
	var ranges []registry.ClassTypeRange
	for _, arg := range args {
		r, err := registry.ParseClassTypeRange(arg)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

// defaultDayOffset is how far back the registry has reliably finished publishing a day.
const defaultDayOffset = 7

// resolveDay parses the --day flag, empty means a week ago in the registry's timezone.
func resolveDay(clock chrono.API, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return chrono.DaysAgo(clock, defaultDayOffset), nil
	}
	day, err := chrono.ParseDay(clock, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q, expected MM/DD/YYYY: %w", value, err)
	}
	return day, nil
}

func newRegistryClient(cfg Config, tel telemetry.API) (*registry.Client, error) {
	return registry.NewClient(registry.ClientOptions{
		BaseUrl:           cfg.BaseUrl,
		RequestsPerSecond: cfg.RequestsPerSecond,
		CloudflareBypass:  cfg.CloudflareBypass,
	}, tel)
}

// openSession opens the session of the configured mode, direct sessions share client.
func openSession(cfg Config, client *registry.Client, headed bool, tel telemetry.API) (registry.Session, error) {
	switch cfg.Mode {
	case ModeDirect:
		return registry.NewDirectSession(client, tel), nil
	default:
		return browser.Launch(client.Endpoints, browser.Options{
			Headless:    !headed,
			Bin:         cfg.BrowserBin,
			Stealth:     cfg.Stealth,
			LoadTimeout: time.Duration(cfg.DetailTimeoutSeconds) * time.Second,
		}, tel)
	}
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func optional(value *string) string {
	if value == nil {
		return "-"
	}
	return *value
}
