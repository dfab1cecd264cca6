package config

import (
	"sort"
	"strings"
)

func preset(scene string, edit func(c *Config)) *Config {
	c := DefaultConfig()
	c.Scene = scene
	edit(c)
	return c
}

var Presets = map[string]map[string]*Config{
	"cloth": {
		"default": preset("cloth", func(c *Config) {}),
		"small": preset("cloth", func(c *Config) {
			c.Grid.Width, c.Grid.Height = 16, 8
			c.Grid.LockEvery = 5
		}),
		"stiff": preset("cloth", func(c *Config) {
			c.Solver.Iterations = 20
		}),
		"heavy": preset("cloth", func(c *Config) {
			c.Grid.Mass = 3
			c.Solver.Iterations = 12
		}),
		"curtain": preset("cloth", func(c *Config) {
			c.Grid.Width, c.Grid.Height = 48, 24
			c.Grid.Spacing = 0.5
			c.Grid.LockEvery = 1
			c.Steps = 1000
		}),
		"torn": preset("cloth", func(c *Config) {
			c.Tear = TearConfig{Step: 100, X: 12, Y: -6, Radius: 1.5, Count: 12}
			c.Solver.Isolation = "remove"
		}),
	},
	"rope": {
		"swing": preset("rope", func(c *Config) {
			c.Grid.Width = 20
			c.Grid.Spacing = 0.5
		}),
		"long": preset("rope", func(c *Config) {
			c.Grid.Width = 80
			c.Grid.Spacing = 0.25
			c.Solver.Iterations = 30
			c.Steps = 1500
		}),
		"cut": preset("rope", func(c *Config) {
			c.Grid.Width = 20
			c.Grid.Spacing = 0.5
			c.Tear = TearConfig{Step: 150, X: 0, Y: -2.5, Radius: 0.75, Count: 1}
		}),
	},
	"chain": {
		"bridge": preset("chain", func(c *Config) {
			c.Grid.Width = 24
			c.Grid.Slack = 1.15
		}),
		"taut": preset("chain", func(c *Config) {
			c.Grid.Width = 24
			c.Grid.Slack = 1.0
			c.Solver.Iterations = 15
		}),
		"snap": preset("chain", func(c *Config) {
			c.Grid.Width = 24
			c.Grid.Slack = 1.15
			c.Tear = TearConfig{Step: 200, X: 11.5, Y: -3, Radius: 2, Count: 1}
			c.Solver.Isolation = "remove"
		}),
	},
}

// GetPreset returns a copy of the named preset, or nil if it does not exist.
func GetPreset(scene, name string) *Config {
	scenePresets, ok := Presets[scene]
	if !ok {
		return nil
	}
	cfg, ok := scenePresets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(scene string) []string {
	scenePresets, ok := Presets[scene]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(scenePresets))
	for name := range scenePresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve accepts "scene" or "scene/name" and returns the preset, defaulting
// the name to the scene's default preset.
func Resolve(ref string) (*Config, error) {
	scene, name, _ := strings.Cut(ref, "/")
	if name == "" {
		name = DefaultPresetName(scene)
	}
	cfg := GetPreset(scene, name)
	if cfg == nil {
		return nil, invalid("unknown preset %q (available for %s: %v)", ref, scene, ListPresets(scene))
	}
	return cfg, nil
}

func DefaultPresetName(scene string) string {
	switch scene {
	case "cloth":
		return "default"
	case "rope":
		return "swing"
	case "chain":
		return "bridge"
	}
	return ""
}
