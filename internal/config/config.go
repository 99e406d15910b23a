package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/natefinch/atomic"
	"github.com/spf13/viper"
)

const (
	EnvPrefix       = "ZJ"
	DefaultPath     = "~/.zen-journal/config.yaml"
	defaultDataFile = "~/.zen-journal/journal.db"
)

type Config struct {
	Addr        string
	H2C         bool
	CORSOrigins []string

	DBDriver   string
	DBPath     string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	JWTSecret string

	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GoogleAuthURL      string
	GoogleTokenURL     string
	CalendarAPIURL     string
	CalendarID         string
	CalendarSuccessURL string
	TimeZone           string

	// CLI identity and dictation.
	User           string
	DictateCommand string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("h2c", false)
	v.SetDefault("cors_origins", []string{"*"})

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.path", defaultDataFile)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "zen_journal")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("jwt_secret", "")

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")

	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.redirect_url", "http://localhost:8080/calendar/callback")
	v.SetDefault("google.auth_url", "")
	v.SetDefault("google.token_url", "")
	v.SetDefault("google.calendar_api_url", "")
	v.SetDefault("google.calendar_id", "primary")
	v.SetDefault("google.success_url", "")
	v.SetDefault("timezone", "UTC")

	v.SetDefault("cli.user", "local")
	v.SetDefault("cli.dictate_command", "")
}

// legacyEnv binds the unprefixed variables deployments already set.
var legacyEnv = map[string]string{
	"db.host":              "DB_HOST",
	"db.port":              "DB_PORT",
	"db.user":              "DB_USER",
	"db.password":          "DB_PASSWORD",
	"db.name":              "DB_NAME",
	"jwt_secret":           "JWT_SECRET",
	"openai.api_key":       "OPENAI_API_KEY",
	"openai.model":         "OPENAI_MODEL",
	"google.client_id":     "GOOGLE_CLIENT_ID",
	"google.client_secret": "GOOGLE_CLIENT_SECRET",
}

// Load reads defaults, then the YAML file at path, then the environment.
// A missing file is not an error. An empty path means DefaultPath.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}

	if path == "" {
		path = DefaultPath
	}
	file, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand config path: %w", err)
	}
	if _, err := os.Stat(file); err == nil {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	dbPath, err := homedir.Expand(v.GetString("db.path"))
	if err != nil {
		return nil, fmt.Errorf("expand db path: %w", err)
	}

	return &Config{
		Addr:        v.GetString("addr"),
		H2C:         v.GetBool("h2c"),
		CORSOrigins: v.GetStringSlice("cors_origins"),

		DBDriver:   v.GetString("db.driver"),
		DBPath:     dbPath,
		DBHost:     v.GetString("db.host"),
		DBPort:     v.GetInt("db.port"),
		DBUser:     v.GetString("db.user"),
		DBPassword: v.GetString("db.password"),
		DBName:     v.GetString("db.name"),
		DBSSLMode:  v.GetString("db.sslmode"),

		JWTSecret: v.GetString("jwt_secret"),

		OpenAIKey:     v.GetString("openai.api_key"),
		OpenAIBaseURL: v.GetString("openai.base_url"),
		OpenAIModel:   v.GetString("openai.model"),

		GoogleClientID:     v.GetString("google.client_id"),
		GoogleClientSecret: v.GetString("google.client_secret"),
		GoogleRedirectURL:  v.GetString("google.redirect_url"),
		GoogleAuthURL:      v.GetString("google.auth_url"),
		GoogleTokenURL:     v.GetString("google.token_url"),
		CalendarAPIURL:     v.GetString("google.calendar_api_url"),
		CalendarID:         v.GetString("google.calendar_id"),
		CalendarSuccessURL: v.GetString("google.success_url"),
		TimeZone:           v.GetString("timezone"),

		User:           v.GetString("cli.user"),
		DictateCommand: v.GetString("cli.dictate_command"),
	}, nil
}

// ConnString is the data source for the configured driver.
func (c *Config) ConnString() string {
	if c.DBDriver == "sqlite" {
		return c.DBPath
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("db.driver must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	return nil
}

// DefaultYAML is what `config init` writes.
const DefaultYAML = `# zen-journal configuration. Environment variables with the ZJ_ prefix
# override these values (ZJ_DB_DRIVER, ZJ_OPENAI_API_KEY, ...).
addr: ":8080"
h2c: false
cors_origins: ["*"]

db:
  driver: sqlite
  path: ~/.zen-journal/journal.db
  # host: localhost
  # port: 5432
  # user: zen
  # password: ""
  # name: zen_journal

jwt_secret: ""

openai:
  api_key: ""
  model: gpt-4o-mini

google:
  client_id: ""
  client_secret: ""
  redirect_url: http://localhost:8080/calendar/callback
  calendar_id: primary

timezone: UTC

cli:
  user: local
  # dictate_command: "whisper-listen --once"
`

// WriteDefault writes DefaultYAML to path unless a file is already there.
func WriteDefault(path string, force bool) (string, error) {
	if path == "" {
		path = DefaultPath
	}
	file, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	if !force {
		if _, err := os.Stat(file); err == nil {
			return file, fmt.Errorf("%s already exists", file)
		}
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	if err := atomic.WriteFile(file, bytes.NewReader([]byte(DefaultYAML))); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return file, nil
}
