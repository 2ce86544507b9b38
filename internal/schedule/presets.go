package schedule

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"stream-access-guard/internal/storage"
)

// PresetWindow is one day/window pair inside a preset definition.
type PresetWindow struct {
	DayOfWeek int    `yaml:"day_of_week"`
	StartTime string `yaml:"start_time"`
	EndTime   string `yaml:"end_time"`
}

// Preset is a named full replacement rule set for a user/device scope.
type Preset struct {
	Description string         `yaml:"description"`
	Windows     []PresetWindow `yaml:"windows"`
}

type presetFile struct {
	Presets map[string]Preset `yaml:"presets"`
}

// Built-in presets. Weekday/weekend windows cover after-school and daytime
// hours; operators can override them with a preset file.
var builtinPresets = map[string]Preset{
	"weekdays-only": {
		Description: "Allow streaming Monday through Friday, 15:00-21:00",
		Windows: []PresetWindow{
			{DayOfWeek: 1, StartTime: "15:00", EndTime: "21:00"},
			{DayOfWeek: 2, StartTime: "15:00", EndTime: "21:00"},
			{DayOfWeek: 3, StartTime: "15:00", EndTime: "21:00"},
			{DayOfWeek: 4, StartTime: "15:00", EndTime: "21:00"},
			{DayOfWeek: 5, StartTime: "15:00", EndTime: "21:00"},
		},
	},
	"weekends-only": {
		Description: "Allow streaming Saturday and Sunday, 09:00-21:00",
		Windows: []PresetWindow{
			{DayOfWeek: 0, StartTime: "09:00", EndTime: "21:00"},
			{DayOfWeek: 6, StartTime: "09:00", EndTime: "21:00"},
		},
	},
}

var (
	presetsMu sync.RWMutex
	presets   = builtinPresets
)

// LoadPresetFile replaces the preset table from a YAML file. Definitions are
// validated before they are installed, a bad file leaves the current table
// untouched.
func LoadPresetFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read preset file: %w", err)
	}

	var parsed presetFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse preset file: %w", err)
	}

	for name, preset := range parsed.Presets {
		if len(preset.Windows) == 0 {
			return fmt.Errorf("preset %q has no windows", name)
		}
		for _, w := range preset.Windows {
			if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
				return fmt.Errorf("preset %q: %w: %d", name, ErrInvalidDayOfWeek, w.DayOfWeek)
			}
			if err := ValidateTimeRange(w.StartTime, w.EndTime); err != nil {
				return fmt.Errorf("preset %q: %w", name, err)
			}
		}
	}

	presetsMu.Lock()
	presets = parsed.Presets
	presetsMu.Unlock()

	slog.Info("Schedule presets loaded", "file", path, "presets", len(parsed.Presets))
	return nil
}

// PresetNames lists the available preset names.
func PresetNames() []string {
	presetsMu.RLock()
	defer presetsMu.RUnlock()
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	return names
}

// PresetRules expands a named preset into a full rule set for one scope.
// The result replaces the scope's current rules atomically at the storage
// layer.
func PresetRules(name string, userID string, deviceID *string) ([]storage.TimeRule, error) {
	presetsMu.RLock()
	preset, ok := presets[name]
	presetsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown preset: %q", name)
	}

	rules := make([]storage.TimeRule, 0, len(preset.Windows))
	for _, w := range preset.Windows {
		rules = append(rules, storage.TimeRule{
			ID:        uuid.NewString(),
			UserID:    userID,
			DeviceID:  deviceID,
			DayOfWeek: w.DayOfWeek,
			StartTime: w.StartTime,
			EndTime:   w.EndTime,
			Enabled:   true,
		})
	}
	return rules, nil
}
