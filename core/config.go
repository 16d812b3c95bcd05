package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env      string // DEV (default), TEST, QA, PROD
	Debug    bool
	TestMode bool
	AppName  string
	Build    string

	SecretKey        string
	DatabaseURL      string
	FrontendBaseURL  string
	DefaultFromEmail mail.Address
	SendgridAPIKey   string
	RollbarToken     string

	Server struct {
		Host               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}
}

func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("app_name", "OrganQuest")
	v.SetDefault("secret_key", "z#1y&9t)d$+u7=ojwz&v*xh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("database_url", "")
	v.SetDefault("frontend_base_url", "http://localhost:5173")
	v.SetDefault("default_from_email", "noreply@localhost")
	v.SetDefault("server_host", "0.0.0.0:8000")
	v.SetDefault("server_debug_host", "0.0.0.0:6060")
	v.SetDefault("shutdown_timeout", 5*time.Second)
	v.SetDefault("jwt_expiration_delta", 30*24*time.Hour)

	env := os.Getenv("ENV")
	if env == "" {
		env = "DEV"
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := &Config{
		Env:             env,
		Debug:           v.GetBool("debug"),
		TestMode:        env == "TEST",
		AppName:         v.GetString("app_name"),
		Build:           v.GetString("build"),
		SecretKey:       v.GetString("secret_key"),
		DatabaseURL:     v.GetString("database_url"),
		FrontendBaseURL: v.GetString("frontend_base_url"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("app_name"),
			Address: v.GetString("default_from_email"),
		},
		SendgridAPIKey: v.GetString("sendgrid_api_key"),
		RollbarToken:   v.GetString("rollbar_token"),
	}
	conf.Server.Host = v.GetString("server_host")
	conf.Server.DebugHost = v.GetString("server_debug_host")
	conf.Server.ShutdownTimeout = v.GetDuration("shutdown_timeout")
	conf.Server.JWTExpirationDelta = v.GetDuration("jwt_expiration_delta")
	return conf
}
