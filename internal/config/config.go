// Package config loads the companion's JSON configuration through viper
// and exposes typed views of it. It also discovers the game's user-data
// root from its Nadeo-style ini file.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rmchallenge/companion/internal/rules"
	"github.com/rmchallenge/companion/internal/util"
)

// DefaultUserSubDir is the game's user-data folder when the ini file is
// absent or silent.
const DefaultUserSubDir = "TmForever"

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("game.dir", "")
	viper.SetDefault("game.exe", "TmForever.exe")
	viper.SetDefault("game.nadeoIni", "Nadeo.ini")
	viper.SetDefault("game.documentsDir", "")

	viper.SetDefault("paths.downloadSubdir", "RMC")
	viper.SetDefault("paths.sessionsDir", "Sessions")

	viper.SetDefault("session.networkRetryDelayMs", 1000)
	viper.SetDefault("session.invalidRetryDelayMs", 500)

	viper.SetDefault("watcher.readRetries", 5)
	viper.SetDefault("watcher.retryDelayMs", 200)

	viper.SetDefault("acquire.requestTimeoutSec", 30)

	viper.SetDefault("storage.backend", "json")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "rmc")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "rmc-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "rmc-companion")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("stream.enabled", false)
	viper.SetDefault("stream.url", "ws://localhost:5100/companion")

	viper.SetDefault("rules.timeLimit", "1h")
	viper.SetDefault("rules.noUnlimiter", true)
	viper.SetDefault("rules.sites", []string{})
	viper.SetDefault("rules.primaryType", "")
	viper.SetDefault("rules.environments", []string{})
	viper.SetDefault("rules.vehicles", []string{})
	viper.SetDefault("rules.authorTimeMinMs", 0)
	viper.SetDefault("rules.authorTimeMaxMs", 0)
	viper.SetDefault("rules.environmentEqualDistribution", false)
	viper.SetDefault("rules.vehicleEqualDistribution", false)

	viper.SetConfigName("companion.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// SessionConfig carries the play loop's retry delays.
type SessionConfig struct {
	NetworkRetryDelay time.Duration
	InvalidRetryDelay time.Duration
}

func GetSessionConfig() SessionConfig {
	return SessionConfig{
		NetworkRetryDelay: time.Duration(viper.GetInt("session.networkRetryDelayMs")) * time.Millisecond,
		InvalidRetryDelay: time.Duration(viper.GetInt("session.invalidRetryDelayMs")) * time.Millisecond,
	}
}

// WatcherConfig carries the autosave watcher's read-retry settings.
type WatcherConfig struct {
	ReadRetries int
	RetryDelay  time.Duration
}

func GetWatcherConfig() WatcherConfig {
	return WatcherConfig{
		ReadRetries: viper.GetInt("watcher.readRetries"),
		RetryDelay:  time.Duration(viper.GetInt("watcher.retryDelayMs")) * time.Millisecond,
	}
}

// StorageConfig selects the recorder backend.
type StorageConfig struct {
	Backend string
}

func GetStorageConfig() StorageConfig {
	return StorageConfig{Backend: viper.GetString("storage.backend")}
}

// GameConfig locates the game installation and its user data.
type GameConfig struct {
	Dir            string
	Exe            string
	NadeoIni       string
	DocumentsDir   string
	DownloadSubdir string
	SessionsDir    string
}

func GetGameConfig() GameConfig {
	return GameConfig{
		Dir:            viper.GetString("game.dir"),
		Exe:            viper.GetString("game.exe"),
		NadeoIni:       viper.GetString("game.nadeoIni"),
		DocumentsDir:   viper.GetString("game.documentsDir"),
		DownloadSubdir: viper.GetString("paths.downloadSubdir"),
		SessionsDir:    viper.GetString("paths.sessionsDir"),
	}
}

// ExePath returns the full path of the game executable.
func (g GameConfig) ExePath() string {
	return filepath.Join(g.Dir, g.Exe)
}

// UserDataRoot resolves the game's user-data directory: the documents
// dir joined with the UserSubDir named in the game's ini file.
func (g GameConfig) UserDataRoot() string {
	sub := UserSubDir(filepath.Join(g.Dir, g.NadeoIni))
	return filepath.Join(g.DocumentsDir, sub)
}

// AutosaveDir is the watched replay directory under the user-data root.
func (g GameConfig) AutosaveDir() string {
	return filepath.Join(g.UserDataRoot(), "Tracks", "Replays", "Autosaves")
}

// DownloadDir is where acquired maps are written.
func (g GameConfig) DownloadDir() string {
	return filepath.Join(g.UserDataRoot(), "Tracks", "Challenges", "Downloaded", g.DownloadSubdir)
}

// SessionsRoot is where per-session records and replay copies live.
func (g GameConfig) SessionsRoot() string {
	return filepath.Join(g.UserDataRoot(), g.SessionsDir)
}

// OTelConfig mirrors the otel provider's settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

func GetOTelConfig() OTelConfig {
	timeout, err := time.ParseDuration(viper.GetString("otel.batchTimeout"))
	if err != nil {
		timeout = 5 * time.Second
	}
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: timeout,
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GraylogConfig configures the optional GELF log handler.
type GraylogConfig struct {
	Enabled bool
	Address string
}

func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// StreamConfig configures the websocket status stream.
type StreamConfig struct {
	Enabled bool
	URL     string
}

func GetStreamConfig() StreamConfig {
	return StreamConfig{
		Enabled: viper.GetBool("stream.enabled"),
		URL:     viper.GetString("stream.url"),
	}
}

// GetRules assembles the configured rule set.
func GetRules() rules.RuleSet {
	rs := rules.Default()

	if d, err := time.ParseDuration(viper.GetString("rules.timeLimit")); err == nil && d > 0 {
		rs.TimeLimit = d
	}
	rs.NoUnlimiter = viper.GetBool("rules.noUnlimiter")

	if names := viper.GetStringSlice("rules.sites"); len(names) > 0 {
		rs.Request.Sites = rules.SiteAny
		for _, name := range names {
			if site, ok := siteNames[strings.ToLower(name)]; ok {
				rs.Request.Sites |= site
			}
		}
	}
	if name := viper.GetString("rules.primaryType"); name != "" {
		if pt, ok := primaryTypeNames[strings.ToLower(name)]; ok {
			p := pt
			rs.Request.PrimaryType = &p
		}
	}
	for _, name := range viper.GetStringSlice("rules.environments") {
		if env, ok := environmentNames[strings.ToLower(name)]; ok {
			rs.Request.Environments = append(rs.Request.Environments, env)
		}
	}
	for _, name := range viper.GetStringSlice("rules.vehicles") {
		if env, ok := environmentNames[strings.ToLower(name)]; ok {
			rs.Request.Vehicles = append(rs.Request.Vehicles, rules.Vehicle(env))
		}
	}
	if ms := viper.GetInt("rules.authorTimeMinMs"); ms > 0 {
		rs.Request.AuthorTimeMin = time.Duration(ms) * time.Millisecond
	}
	if ms := viper.GetInt("rules.authorTimeMaxMs"); ms > 0 {
		rs.Request.AuthorTimeMax = time.Duration(ms) * time.Millisecond
	}
	rs.Request.EnvironmentEqualDistribution = viper.GetBool("rules.environmentEqualDistribution")
	rs.Request.VehicleEqualDistribution = viper.GetBool("rules.vehicleEqualDistribution")

	return rs
}

var siteNames = map[string]rules.Site{
	"tmnf":     rules.SiteTMNF,
	"tmuf":     rules.SiteTMUF,
	"nations":  rules.SiteNations,
	"sunrise":  rules.SiteSunrise,
	"original": rules.SiteOriginal,
}

var primaryTypeNames = map[string]rules.PrimaryType{
	"race":     rules.TypeRace,
	"puzzle":   rules.TypePuzzle,
	"platform": rules.TypePlatform,
	"stunts":   rules.TypeStunts,
}

var environmentNames = map[string]rules.Environment{
	"alpine":  rules.EnvAlpine,
	"snow":    rules.EnvAlpine,
	"bay":     rules.EnvBay,
	"coast":   rules.EnvCoast,
	"island":  rules.EnvIsland,
	"rally":   rules.EnvRally,
	"speed":   rules.EnvSpeed,
	"desert":  rules.EnvSpeed,
	"stadium": rules.EnvStadium,
}

// UserSubDir reads the UserSubDir key from the game's ini file. Missing
// file or key falls back to the default.
func UserSubDir(iniPath string) string {
	f, err := os.Open(iniPath)
	if err != nil {
		return DefaultUserSubDir
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found || !strings.EqualFold(strings.TrimSpace(key), "UserSubDir") {
			continue
		}
		value = util.TrimQuotes(strings.TrimSpace(value))
		if value == "" {
			return DefaultUserSubDir
		}
		return value
	}
	return DefaultUserSubDir
}
