// Package config carga la configuración YAML del servicio con defaults
// razonables y overrides por variables de entorno.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr            string `yaml:"addr"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		// postgres | memory
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	JWT struct {
		Issuer     string `yaml:"issuer"`
		KeyFile    string `yaml:"key_file"`
		AccessTTL  string `yaml:"access_ttl"`
		IDTokenTTL string `yaml:"id_token_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	Auth struct {
		AuthCodeTTL string `yaml:"auth_code_ttl"`
		LoginURL    string `yaml:"login_url"`
		ConsentURL  string `yaml:"consent_url"`
		Session     struct {
			CookieName string `yaml:"cookie_name"`
			Domain     string `yaml:"domain"`
			SameSite   string `yaml:"samesite"`
			Secure     bool   `yaml:"secure"`
			TTL        string `yaml:"ttl"`
		} `yaml:"session"`
	} `yaml:"auth"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Token   struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"token"`
		Authorize struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"authorize"`
	} `yaml:"rate"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	} `yaml:"smtp"`
}

// Load lee el YAML, aplica defaults, overrides por env y valida.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "http://localhost:8080"
	}
	if c.JWT.KeyFile == "" {
		c.JWT.KeyFile = "./data/signing.key.json"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "15m"
	}
	if c.JWT.IDTokenTTL == "" {
		c.JWT.IDTokenTTL = "15m"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "720h" // 30d
	}
	if c.Auth.AuthCodeTTL == "" {
		c.Auth.AuthCodeTTL = "2m"
	}
	if c.Auth.LoginURL == "" {
		c.Auth.LoginURL = "/login"
	}
	if c.Auth.ConsentURL == "" {
		c.Auth.ConsentURL = "/consent"
	}
	if c.Auth.Session.CookieName == "" {
		c.Auth.Session.CookieName = "sid"
	}
	if c.Auth.Session.SameSite == "" {
		c.Auth.Session.SameSite = "Lax"
	}
	if c.Auth.Session.TTL == "" {
		c.Auth.Session.TTL = "12h"
	}
	if c.Rate.Token.Limit == 0 {
		c.Rate.Token.Limit = 30
	}
	if c.Rate.Token.Window == "" {
		c.Rate.Token.Window = "1m"
	}
	if c.Rate.Authorize.Limit == 0 {
		c.Rate.Authorize.Limit = 60
	}
	if c.Rate.Authorize.Window == "" {
		c.Rate.Authorize.Window = "1m"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}

	c.applyEnvOverrides()

	// validar duraciones en string
	for _, d := range []string{
		c.Server.ShutdownTimeout, c.Cache.Memory.DefaultTTL,
		c.JWT.AccessTTL, c.JWT.IDTokenTTL, c.JWT.RefreshTTL,
		c.Auth.AuthCodeTTL, c.Auth.Session.TTL,
		c.Rate.Token.Window, c.Rate.Authorize.Window,
	} {
		if _, err := time.ParseDuration(d); err != nil {
			return nil, fmt.Errorf("config: invalid duration %q: %w", d, err)
		}
	}

	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return nil, fmt.Errorf("config: storage.driver=postgres requiere storage.dsn")
	}
	if strings.EqualFold(c.App.Env, "prod") && !c.Auth.Session.Secure {
		// en prod la cookie de sesión siempre viaja solo por https
		c.Auth.Session.Secure = true
	}

	return &c, nil
}

// Duration parsea una duración ya validada por Load.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("DATABASE_URL"); ok {
		c.Storage.Driver = "postgres"
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Kind = "redis"
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_KEY_FILE"); ok {
		c.JWT.KeyFile = v
	}
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
