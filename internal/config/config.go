package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"netinspect/pkg/rulespec"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "NETINSPECT"

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	EnableDebugLogging   bool `yaml:"enableDebugLogging" envconfig:"DEBUG_LOGGING"`
	EnableShakeDetection bool `yaml:"enableShakeDetection" envconfig:"SHAKE_DETECTION"`

	NetworkInspection NetworkInspection `yaml:"networkInspection" envconfig:"NETWORK"`
	Preferences       Preferences       `yaml:"preferences" envconfig:"PREFERENCES"`

	Storage struct {
		Dir    string `yaml:"dir" envconfig:"DIR"`
		File   string `yaml:"file" envconfig:"FILE"`
		Prefix string `yaml:"prefix" envconfig:"PREFIX"`
	} `yaml:"storage" envconfig:"STORAGE"`

	Log struct {
		Level  string   `yaml:"level" envconfig:"LEVEL"`
		Writer []string `yaml:"writer" envconfig:"WRITER"`
		File   string   `yaml:"file" envconfig:"FILE"`
	} `yaml:"log" envconfig:"LOG"`

	HTTP struct {
		Addr string `yaml:"addr" envconfig:"ADDR"`
	} `yaml:"http" envconfig:"HTTP"`

	CDP struct {
		DevToolsURL string `yaml:"devToolsURL" envconfig:"DEVTOOLS_URL"`
	} `yaml:"cdp" envconfig:"CDP"`
}

// NetworkInspection 网络捕获配置
type NetworkInspection struct {
	EnableNetworkLogging bool            `yaml:"enableNetworkLogging" envconfig:"ENABLE_LOGGING"`
	CaptureBodies        bool            `yaml:"captureBodies" envconfig:"CAPTURE_BODIES"`
	BodyMaxBytes         int             `yaml:"bodyMaxBytes" envconfig:"BODY_MAX_BYTES"`
	Rules                []rulespec.Rule `yaml:"rules" ignored:"true"`
}

// Preferences 偏好扫描配置
type Preferences struct {
	AutoDiscoverUserDefaults  bool     `yaml:"autoDiscoverUserDefaults" envconfig:"AUTO_DISCOVER_USER_DEFAULTS"`
	AutoDiscoverKeychain      bool     `yaml:"autoDiscoverKeychain" envconfig:"AUTO_DISCOVER_KEYCHAIN"`
	IncludeUserDefaultsSuites []string `yaml:"includeUserDefaultsSuites" envconfig:"INCLUDE_SUITES"`
	ExcludeUserDefaultsSuites []string `yaml:"excludeUserDefaultsSuites" envconfig:"EXCLUDE_SUITES"`
	IncludeKeychainServices   []string `yaml:"includeKeychainServices" envconfig:"INCLUDE_SERVICES"`
	ExcludeKeychainServices   []string `yaml:"excludeKeychainServices" envconfig:"EXCLUDE_SERVICES"`
	ShowSystemPreferences     bool     `yaml:"showSystemPreferences" envconfig:"SHOW_SYSTEM"`
	DefaultsDir               string   `yaml:"defaultsDir" envconfig:"DEFAULTS_DIR"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	cfg := &Config{
		Version: "1.0.0",
		NetworkInspection: NetworkInspection{
			EnableNetworkLogging: true,
			CaptureBodies:        true,
			BodyMaxBytes:         1 << 20,
		},
		Preferences: Preferences{
			AutoDiscoverUserDefaults: true,
			AutoDiscoverKeychain:     true,
		},
	}
	cfg.Storage.Dir = defaultDataDir()
	cfg.Storage.File = "transactions.sqlite3"
	cfg.Storage.Prefix = "netinspect_"
	cfg.Log.Level = "info"
	cfg.Log.Writer = []string{"console"}
	cfg.HTTP.Addr = "127.0.0.1:9393"
	cfg.CDP.DevToolsURL = "http://127.0.0.1:9222"
	return cfg
}

// Load 依次应用默认值、配置文件（可选）与环境变量
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("apply env: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// LogLevel 调试日志开关会强制使用 debug 级别
func (c *Config) LogLevel() string {
	if c.EnableDebugLogging {
		return "debug"
	}
	return c.Log.Level
}

// DatabasePath 数据库文件完整路径
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Storage.Dir, c.Storage.File)
}

func (c *Config) normalize() {
	if c.NetworkInspection.BodyMaxBytes <= 0 {
		c.NetworkInspection.BodyMaxBytes = 1 << 20
	}
	if c.Storage.File == "" {
		c.Storage.File = "transactions.sqlite3"
	}
	if c.Preferences.DefaultsDir == "" {
		c.Preferences.DefaultsDir = filepath.Join(c.Storage.Dir, "defaults")
	}
}

func defaultDataDir() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "netinspect")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "netinspect")
	}
	return filepath.Join(os.TempDir(), "netinspect")
}
