package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"salonledger/backend/internal/service"
)

type Config struct {
	Port          string
	Env           string
	LogLevel      string
	AllowedOrigin string

	DatabaseURL string
	AutoMigrate bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret       string
	TokenTTLMinutes int

	EditPolicy          string
	EditRecentLimit     int
	EditWindowMinutes   int
	DayWindow           string
	RecentBillsInWindow bool
	Timezone            string
	WeekStart           string

	PhoneRegion string
	SalonName   string

	SeedOwnerEmail    string
	SeedOwnerPassword string
}

// Load reads configuration from an optional .env file in the working
// directory and then from the process environment, which takes precedence.
func Load() Config {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	// A missing .env file is normal outside local development.
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ALLOWED_ORIGIN", "http://127.0.0.1:3000")
	v.SetDefault("AUTO_MIGRATE", true)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("TOKEN_TTL_MINUTES", 1440)
	v.SetDefault("EDIT_POLICY", service.EditPolicyRecent)
	v.SetDefault("EDIT_RECENT_LIMIT", 15)
	v.SetDefault("EDIT_WINDOW_MINUTES", 15)
	v.SetDefault("DAY_WINDOW", service.DayWindowFull)
	v.SetDefault("RECENT_BILLS_IN_WINDOW", false)
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("WEEK_START", "sunday")
	v.SetDefault("PHONE_REGION", "IN")
	v.SetDefault("SALON_NAME", "Salon")
	v.SetDefault("SEED_OWNER_EMAIL", "owner@salon.local")

	tokenTTL := v.GetInt("TOKEN_TTL_MINUTES")
	if tokenTTL < 1 {
		tokenTTL = 1440
	}
	recentLimit := v.GetInt("EDIT_RECENT_LIMIT")
	if recentLimit < 1 {
		recentLimit = 15
	}
	windowMinutes := v.GetInt("EDIT_WINDOW_MINUTES")
	if windowMinutes < 1 {
		windowMinutes = 15
	}

	editPolicy := strings.ToLower(strings.TrimSpace(v.GetString("EDIT_POLICY")))
	if editPolicy != service.EditPolicyWindow {
		editPolicy = service.EditPolicyRecent
	}
	dayWindow := strings.ToLower(strings.TrimSpace(v.GetString("DAY_WINDOW")))
	if dayWindow != service.DayWindowMorning {
		dayWindow = service.DayWindowFull
	}

	return Config{
		Port:          v.GetString("PORT"),
		Env:           strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV"))),
		LogLevel:      v.GetString("LOG_LEVEL"),
		AllowedOrigin: v.GetString("ALLOWED_ORIGIN"),

		DatabaseURL: strings.TrimSpace(v.GetString("DATABASE_URL")),
		AutoMigrate: v.GetBool("AUTO_MIGRATE"),

		RedisAddr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		JWTSecret:       strings.TrimSpace(v.GetString("JWT_SECRET")),
		TokenTTLMinutes: tokenTTL,

		EditPolicy:          editPolicy,
		EditRecentLimit:     recentLimit,
		EditWindowMinutes:   windowMinutes,
		DayWindow:           dayWindow,
		RecentBillsInWindow: v.GetBool("RECENT_BILLS_IN_WINDOW"),
		Timezone:            strings.TrimSpace(v.GetString("TIMEZONE")),
		WeekStart:           strings.ToLower(strings.TrimSpace(v.GetString("WEEK_START"))),

		PhoneRegion: strings.ToUpper(strings.TrimSpace(v.GetString("PHONE_REGION"))),
		SalonName:   strings.TrimSpace(v.GetString("SALON_NAME")),

		SeedOwnerEmail:    strings.ToLower(strings.TrimSpace(v.GetString("SEED_OWNER_EMAIL"))),
		SeedOwnerPassword: v.GetString("SEED_OWNER_PASSWORD"),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

func (c Config) EditWindow() time.Duration {
	return time.Duration(c.EditWindowMinutes) * time.Minute
}

// Location resolves the configured calendar time zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Weekday resolves the configured first day of the week, defaulting to Sunday.
func (c Config) Weekday() time.Weekday {
	for day := time.Sunday; day <= time.Saturday; day++ {
		if strings.EqualFold(c.WeekStart, day.String()) || strings.EqualFold(c.WeekStart, day.String()[:3]) {
			return day
		}
	}
	return time.Sunday
}
