package provider_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilnworks/autodev/internal/provider"
)

func minMax(min, max float64) (*float64, *float64) { return &min, &max }

func TestValidateSettings(t *testing.T) {
	lo, hi := minMax(1, 10)
	descriptors := []provider.SettingDescriptor{
		{Key: "skipPermissions", Type: provider.SettingBoolean},
		{Key: "mode", Type: provider.SettingSelect, Options: []string{"fast", "careful"}},
		{Key: "maxTurns", Type: provider.SettingNumber, Min: lo, Max: hi},
	}

	t.Run("accepts valid settings", func(t *testing.T) {
		err := provider.ValidateSettings(descriptors, map[string]any{
			"skipPermissions": true,
			"mode":            "careful",
			"maxTurns":        float64(5),
		})
		assert.NoError(t, err)
	})

	t.Run("ignores unknown keys", func(t *testing.T) {
		err := provider.ValidateSettings(descriptors, map[string]any{"somethingElse": "x"})
		assert.NoError(t, err)
	})

	t.Run("rejects wrong type for boolean", func(t *testing.T) {
		err := provider.ValidateSettings(descriptors, map[string]any{"skipPermissions": "yes"})
		assert.Error(t, err)
	})

	t.Run("rejects a select value outside its options", func(t *testing.T) {
		err := provider.ValidateSettings(descriptors, map[string]any{"mode": "reckless"})
		assert.Error(t, err)
	})

	t.Run("rejects a number outside its range", func(t *testing.T) {
		err := provider.ValidateSettings(descriptors, map[string]any{"maxTurns": float64(50)})
		assert.Error(t, err)
	})

	t.Run("rejects a non-numeric value for a number setting", func(t *testing.T) {
		err := provider.ValidateSettings(descriptors, map[string]any{"maxTurns": "five"})
		assert.Error(t, err)
	})
}
