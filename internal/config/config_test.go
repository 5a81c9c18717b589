package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonledger/backend/internal/service"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	cfg := Load()
	assert.Empty(t, cfg.JWTSecret)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EDIT_POLICY", "")
	t.Setenv("DAY_WINDOW", "")
	t.Setenv("EDIT_RECENT_LIMIT", "")

	cfg := Load()
	assert.Equal(t, service.EditPolicyRecent, cfg.EditPolicy)
	assert.Equal(t, service.DayWindowFull, cfg.DayWindow)
	assert.Equal(t, 15, cfg.EditRecentLimit)
	assert.Equal(t, ":8080", Config{Port: "8080"}.Address())
}

func TestLoadReadsEnvironmentOverrides(t *testing.T) {
	t.Setenv("EDIT_POLICY", "Window")
	t.Setenv("EDIT_WINDOW_MINUTES", "30")
	t.Setenv("DAY_WINDOW", "morning")
	t.Setenv("TOKEN_TTL_MINUTES", "-5")
	t.Setenv("PHONE_REGION", "us")

	cfg := Load()
	assert.Equal(t, service.EditPolicyWindow, cfg.EditPolicy)
	assert.Equal(t, 30*time.Minute, cfg.EditWindow())
	assert.Equal(t, service.DayWindowMorning, cfg.DayWindow)
	assert.Equal(t, 1440, cfg.TokenTTLMinutes)
	assert.Equal(t, "US", cfg.PhoneRegion)
}

func TestWeekdayAndLocation(t *testing.T) {
	assert.Equal(t, time.Monday, Config{WeekStart: "monday"}.Weekday())
	assert.Equal(t, time.Saturday, Config{WeekStart: "sat"}.Weekday())
	assert.Equal(t, time.Sunday, Config{WeekStart: "whenever"}.Weekday())

	loc, err := Config{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = Config{Timezone: "Not/AZone"}.Location()
	assert.Error(t, err)
}
