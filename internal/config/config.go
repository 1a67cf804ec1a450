package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"timelinecal/internal/apperr"
	"timelinecal/internal/datemath"
	appLog "timelinecal/internal/log"
	"timelinecal/internal/model"
	"timelinecal/internal/profile"
)

// DefaultPath is where the config lives unless a flag says otherwise.
const DefaultPath = "config/timelinecal.yaml"

// Layout directions.
const (
	DirectionLTR = "ltr"
	DirectionRTL = "rtl"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label shown in the UI.
	Name string `yaml:"name" json:"name"`
	// ResourceID assigns every event of the feed to one resource row.
	ResourceID string `yaml:"resource_id,omitempty" json:"resource_id,omitempty"`
}

func (c ICSConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.URL, validation.Required, is.URL),
		validation.Field(&c.ID, validation.Required),
	)
}

// EventConfig is an event written directly into the config file.
type EventConfig struct {
	ID         string `yaml:"id,omitempty" json:"id,omitempty"`
	Title      string `yaml:"title" json:"title"`
	Start      string `yaml:"start" json:"start"`
	End        string `yaml:"end,omitempty" json:"end,omitempty"`
	AllDay     bool   `yaml:"all_day,omitempty" json:"all_day,omitempty"`
	ResourceID string `yaml:"resource_id,omitempty" json:"resource_id,omitempty"`
	// RRule is an RFC 5545 recurrence rule without DTSTART, e.g.
	// "FREQ=WEEKLY;BYDAY=MO".
	RRule string `yaml:"rrule,omitempty" json:"rrule,omitempty"`
}

func (c EventConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Title, validation.Required),
		validation.Field(&c.Start, validation.Required, validation.By(isMarker)),
		validation.Field(&c.End, validation.By(isMarker)),
	)
}

// VisibleRangeConfig pins the view to explicit dates.
type VisibleRangeConfig struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

func (c BasicAuthConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Username, validation.Required),
		validation.Field(&c.Password, validation.Required),
	)
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as canonical display zone (e.g. "Asia/Seoul").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is the weekday weeks start on ("monday", "sun", ...).
	WeekStart string `yaml:"week_start" json:"week_start"`

	// Direction is "ltr" or "rtl".
	Direction string `yaml:"direction" json:"direction"`

	InitialView string `yaml:"initial_view" json:"initial_view"`
	// InitialDate anchors the first render. Empty means today.
	InitialDate  string             `yaml:"initial_date" json:"initial_date"`
	VisibleRange VisibleRangeConfig `yaml:"visible_range" json:"visible_range"`
	// Duration overrides the span of InitialView.
	Duration datemath.Duration `yaml:"duration" json:"duration"`

	// SlotDuration is picked automatically when empty. SnapDuration
	// defaults to SlotDuration.
	SlotDuration datemath.Duration `yaml:"slot_duration" json:"slot_duration"`
	SnapDuration datemath.Duration `yaml:"snap_duration" json:"snap_duration"`
	ScrollTime   datemath.Duration `yaml:"scroll_time" json:"scroll_time"`
	// StrictSnap rejects a snap duration that does not divide the slot
	// duration instead of snapping coarser.
	StrictSnap bool `yaml:"strict_snap" json:"strict_snap"`

	DatesAboveResources bool `yaml:"dates_above_resources" json:"dates_above_resources"`
	// SlotWidth is the minimum slot width in terminal columns (SVG uses
	// eight pixels per column).
	SlotWidth         int `yaml:"slot_width" json:"slot_width"`
	ResourceAreaWidth int `yaml:"resource_area_width" json:"resource_area_width"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	// CacheDir keeps fetched ICS bodies and their HTTP validators.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Resources []model.Resource `yaml:"resources" json:"resources"`
	Events    []EventConfig    `yaml:"events" json:"events"`
	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              "127.0.0.1:8080",
		Timezone:            "UTC",
		WeekStart:           "monday",
		Direction:           DirectionLTR,
		InitialView:         "resourceTimelineWeek",
		SlotDuration:        datemath.Hours(1),
		ScrollTime:          datemath.Hours(8),
		DatesAboveResources: true,
		SlotWidth:           6,
		ResourceAreaWidth:   16,
		RefreshCron:         "*/15 * * * *",
		LogLevel:            "info",
		LogFormat:           "text",
		CacheDir:            "./var/ics-cache",
		Resources:           []model.Resource{},
		Events:              []EventConfig{},
		ICS:                 []ICSConfig{},
		BasicAuth:           nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.WeekStart == "" {
		c.WeekStart = def.WeekStart
	}
	if c.Direction == "" {
		c.Direction = def.Direction
	}
	if c.InitialView == "" {
		c.InitialView = def.InitialView
	}
	if c.SlotWidth <= 0 {
		c.SlotWidth = def.SlotWidth
	}
	if c.ResourceAreaWidth < 0 {
		c.ResourceAreaWidth = def.ResourceAreaWidth
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.Resources == nil {
		c.Resources = []model.Resource{}
	}
	if c.Events == nil {
		c.Events = []EventConfig{}
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
}

// Validate checks every field. It does not modify c.
func (c *Config) Validate() error {
	views := make([]any, 0)
	for _, v := range profile.ViewNames() {
		views = append(views, v)
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Listen, validation.Required),
		validation.Field(&c.Timezone, validation.By(isTimezone)),
		validation.Field(&c.WeekStart, validation.By(isWeekday)),
		validation.Field(&c.Direction, validation.In(DirectionLTR, DirectionRTL)),
		validation.Field(&c.InitialView, validation.Required, validation.In(views...)),
		validation.Field(&c.InitialDate, validation.By(isMarker)),
		validation.Field(&c.Duration, validation.By(nonNegative)),
		validation.Field(&c.SlotDuration, validation.By(nonNegative)),
		validation.Field(&c.SnapDuration, validation.By(nonNegative)),
		validation.Field(&c.SlotWidth, validation.Min(1)),
		validation.Field(&c.ResourceAreaWidth, validation.Min(0)),
		validation.Field(&c.RefreshCron, validation.By(isCron)),
		validation.Field(&c.LogLevel, validation.By(isLogLevel)),
		validation.Field(&c.LogFormat, validation.In(string(appLog.FormatText), string(appLog.FormatJSON))),
		validation.Field(&c.Resources, validation.By(uniqueResources)),
		validation.Field(&c.Events),
		validation.Field(&c.ICS),
		validation.Field(&c.BasicAuth),
	); err != nil {
		return err
	}
	if c.VisibleRange.Start != "" || c.VisibleRange.End != "" {
		env, _ := c.Env()
		if _, err := profile.ParseVisibleRange(env, c.VisibleRange.Start, c.VisibleRange.End); err != nil {
			return err
		}
	}
	return nil
}

func isTimezone(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := datemath.NewEnv(s, ""); err != nil {
		return errors.New("unknown timezone")
	}
	return nil
}

func isWeekday(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	_, err := datemath.ParseWeekday(s)
	return err
}

func isMarker(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	_, _, err := datemath.ParseMarker(s)
	return err
}

func nonNegative(value any) error {
	d, _ := value.(datemath.Duration)
	if d.AsRoughMs() < 0 {
		return fmt.Errorf("must not be negative, got %s", d)
	}
	return nil
}

func isCron(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	_, err := cron.ParseStandard(s)
	return err
}

func isLogLevel(value any) error {
	s, _ := value.(string)
	_, err := appLog.ParseLevel(s)
	return err
}

func uniqueResources(value any) error {
	rs, _ := value.([]model.Resource)
	seen := make(map[string]bool, len(rs))
	for _, r := range rs {
		if r.ID == "" {
			return errors.New("resource id is required")
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate resource id %q", r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}

// Env is the calendar environment the config describes.
func (c *Config) Env() (datemath.Env, error) {
	env, err := datemath.NewEnv(c.Timezone, c.WeekStart)
	if err != nil {
		return datemath.Env{}, apperr.Config("timezone", "%v", err)
	}
	return env, nil
}

// IsRtl reports whether slots run right to left.
func (c *Config) IsRtl() bool {
	return c.Direction == DirectionRTL
}

// Policy builds the visible-range policy of the configured view.
func (c *Config) Policy(env datemath.Env) (profile.Policy, error) {
	vr, err := profile.ParseVisibleRange(env, c.VisibleRange.Start, c.VisibleRange.End)
	if err != nil {
		return profile.Policy{}, err
	}
	return profile.Policy{
		VisibleRange: vr,
		Duration:     c.Duration,
		ExpandToDays: !c.SlotDuration.IsZero() && !c.SlotDuration.HasTime(),
	}, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - expand ${ENV} references
//   - read YAML over the defaults
//   - normalize and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			appLog.Info("wrote default config", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults, then normalizes and validates.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, apperr.Config("", "parse yaml: %v", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		var ce *apperr.ConfigError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, apperr.Config("", "%v", err)
	}
	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".timelinecal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
