// Package scenario loads world layouts: extent, obstacles, waypoints and
// agent spawn blocks, from YAML files.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ambleworks/crowd/components"
)

// Scenario describes a complete world layout.
type Scenario struct {
	Name      string       `yaml:"name"`
	World     World        `yaml:"world"`
	Obstacles []Obstacle   `yaml:"obstacles"`
	Waypoints []Waypoint   `yaml:"waypoints"`
	Agents    []SpawnBlock `yaml:"agents"`
}

// World is the extent override; zero values keep the configured extent.
type World struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Obstacle is a line segment agents cannot cross.
type Obstacle struct {
	X1 float64 `yaml:"x1"`
	Y1 float64 `yaml:"y1"`
	X2 float64 `yaml:"x2"`
	Y2 float64 `yaml:"y2"`
}

// Waypoint is a named destination or interaction point.
type Waypoint struct {
	Name   string  `yaml:"name"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Radius float64 `yaml:"radius"`
	Kind   string  `yaml:"kind"`  // normal | shelf | queue | work | attraction | service
	Angle  float64 `yaml:"angle"` // facing angle for interactive waypoints, radians
}

// SpawnBlock places count agents of one type around a point, sharing a
// destination list.
type SpawnBlock struct {
	Count        int      `yaml:"count"`
	Type         string   `yaml:"type"` // adult | elder | child | robot | service-robot
	X            float64  `yaml:"x"`
	Y            float64  `yaml:"y"`
	DX           float64  `yaml:"dx"` // spawn jitter along x
	DY           float64  `yaml:"dy"` // spawn jitter along y
	Mode         string   `yaml:"mode"` // sequential | random
	Destinations []string `yaml:"destinations"`
	Group        bool     `yaml:"group"`      // spawn as one walking group
	RobotMode    string   `yaml:"robot_mode"` // overrides the configured mode
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates scenario YAML.
func Parse(data []byte) (*Scenario, error) {
	sc := &Scenario{}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Validate checks referential integrity and enum fields.
func (sc *Scenario) Validate() error {
	if sc.World.Width < 0 || sc.World.Height < 0 {
		return fmt.Errorf("scenario %q: world extent must not be negative", sc.Name)
	}

	names := make(map[string]bool, len(sc.Waypoints))
	for i, w := range sc.Waypoints {
		if w.Name == "" {
			return fmt.Errorf("scenario %q: waypoint %d has no name", sc.Name, i)
		}
		if names[w.Name] {
			return fmt.Errorf("scenario %q: duplicate waypoint %q", sc.Name, w.Name)
		}
		names[w.Name] = true
		if w.Radius <= 0 {
			return fmt.Errorf("scenario %q: waypoint %q needs a positive radius", sc.Name, w.Name)
		}
		if w.Kind != "" {
			if _, ok := components.ParseWaypointKind(w.Kind); !ok {
				return fmt.Errorf("scenario %q: waypoint %q has unknown kind %q", sc.Name, w.Name, w.Kind)
			}
		}
	}

	for i, b := range sc.Agents {
		if b.Count < 1 {
			return fmt.Errorf("scenario %q: spawn block %d needs count >= 1", sc.Name, i)
		}
		if b.Type != "" {
			if _, ok := components.ParseAgentType(b.Type); !ok {
				return fmt.Errorf("scenario %q: spawn block %d has unknown type %q", sc.Name, i, b.Type)
			}
		}
		if b.Mode != "" {
			if _, ok := components.ParseDestMode(b.Mode); !ok {
				return fmt.Errorf("scenario %q: spawn block %d has unknown mode %q", sc.Name, i, b.Mode)
			}
		}
		if b.RobotMode != "" {
			if _, ok := components.ParseRobotMode(b.RobotMode); !ok {
				return fmt.Errorf("scenario %q: spawn block %d has unknown robot mode %q", sc.Name, i, b.RobotMode)
			}
		}
		if b.Group && b.Count < 2 {
			return fmt.Errorf("scenario %q: spawn block %d: a group needs count >= 2", sc.Name, i)
		}
		for _, d := range b.Destinations {
			if !names[d] {
				return fmt.Errorf("scenario %q: spawn block %d references unknown waypoint %q", sc.Name, i, d)
			}
		}
	}
	return nil
}

// Default returns the built-in hall layout used when no scenario file is
// given: pedestrians cycling between two gates, a shelf corner served by a
// robot, and one service robot on patrol.
func Default() *Scenario {
	return &Scenario{
		Name:  "hall",
		World: World{Width: 40, Height: 30},
		Obstacles: []Obstacle{
			{X1: 0, Y1: 0, X2: 40, Y2: 0},
			{X1: 40, Y1: 0, X2: 40, Y2: 30},
			{X1: 40, Y1: 30, X2: 0, Y2: 30},
			{X1: 0, Y1: 30, X2: 0, Y2: 0},
		},
		Waypoints: []Waypoint{
			{Name: "gate_west", X: 4, Y: 15, Radius: 2},
			{Name: "gate_east", X: 36, Y: 15, Radius: 2},
			{Name: "shelf_north", X: 20, Y: 27, Radius: 1.5, Kind: "shelf", Angle: 1.5708},
			{Name: "dock", X: 20, Y: 3, Radius: 2},
		},
		Agents: []SpawnBlock{
			{Count: 10, Type: "adult", X: 8, Y: 12, DX: 3, DY: 3,
				Destinations: []string{"gate_west", "gate_east"}},
			{Count: 2, Type: "elder", X: 30, Y: 18, DX: 2, DY: 2,
				Destinations: []string{"gate_east", "gate_west"}},
			{Count: 3, Type: "adult", X: 12, Y: 20, DX: 1, DY: 1, Group: true,
				Destinations: []string{"gate_east", "gate_west"}},
			{Count: 1, Type: "robot", X: 20, Y: 6,
				Destinations: []string{"dock", "shelf_north"}},
			{Count: 1, Type: "service-robot", X: 25, Y: 8,
				Destinations: []string{"dock", "gate_east"}},
		},
	}
}
