// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ambleworks/crowd/components"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Sim       SimConfig       `yaml:"sim"`
	World     WorldConfig     `yaml:"world"`
	Durations DurationsConfig `yaml:"durations"`
	Social    SocialConfig    `yaml:"social"`
	Forces    ForcesConfig    `yaml:"forces"`
	Group     GroupConfig     `yaml:"group"`
	Scripts   ScriptsConfig   `yaml:"scripts"`
	Robot     RobotConfig     `yaml:"robot"`
	Speeds    SpeedsConfig    `yaml:"speeds"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Feed      FeedConfig      `yaml:"feed"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	Viewer    ViewerConfig    `yaml:"viewer"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimConfig holds core stepping parameters.
type SimConfig struct {
	Timestep     float64 `yaml:"timestep"`       // seconds per tick
	GridCellSize float64 `yaml:"grid_cell_size"` // spatial grid cell edge (world units)
}

// WorldConfig holds the fallback world extent. A loaded scenario overrides it.
type WorldConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// DurationsConfig holds per-state base durations in seconds. The state
// machine draws the actual duration as base * uniform(1-jitter, 1+jitter).
type DurationsConfig struct {
	Waiting           float64 `yaml:"waiting"`
	Queueing          float64 `yaml:"queueing"`
	Shopping          float64 `yaml:"shopping"`
	Working           float64 `yaml:"working"`
	LiftingForks      float64 `yaml:"lifting_forks"`
	Loading           float64 `yaml:"loading"`
	LoweringForks     float64 `yaml:"lowering_forks"`
	Talking           float64 `yaml:"talking"`
	TellStory         float64 `yaml:"tell_story"`
	GroupTalking      float64 `yaml:"group_talking"`
	TalkingAndWalking float64 `yaml:"talking_and_walking"`
	RequestingService float64 `yaml:"requesting_service"`
	ReceivingService  float64 `yaml:"receiving_service"`
	JitterFrac        float64 `yaml:"jitter_frac"` // symmetric jitter fraction
}

// SocialConfig holds interaction radii and behavior trigger probabilities.
type SocialConfig struct {
	MaxTalkingDistance float64 `yaml:"max_talking_distance"` // speaker/listener pairing range
	MaxServicingRadius float64 `yaml:"max_servicing_radius"` // robot hears requests within this
	ServiceProximity   float64 `yaml:"service_proximity"`    // rendezvous distance for service
	Cooldown           float64 `yaml:"cooldown"`             // debounce between predicate draws

	TellStoryProb            float64 `yaml:"tell_story_prob"`
	GroupTalkingProb         float64 `yaml:"group_talking_prob"`
	TalkingProb              float64 `yaml:"talking_prob"`
	TalkingAndWalkingProb    float64 `yaml:"talking_and_walking_prob"`
	RequestingServiceProb    float64 `yaml:"requesting_service_prob"`
	SwitchRunningWalkingProb float64 `yaml:"switch_running_walking_prob"`

	ListenerSpacing float64 `yaml:"listener_spacing"` // ring spacing per co-listener
	MinStandoff     float64 `yaml:"min_standoff"`     // keep-distance floor
}

// ForcesConfig holds force factors and numeric constants.
type ForcesConfig struct {
	FactorDesired      float64 `yaml:"factor_desired"`
	FactorSocial       float64 `yaml:"factor_social"`
	FactorObstacle     float64 `yaml:"factor_obstacle"`
	FactorKeepDistance float64 `yaml:"factor_keep_distance"`
	FactorRandom       float64 `yaml:"factor_random"`
	ObstacleSigma      float64 `yaml:"obstacle_sigma"`
	SocialRange        float64 `yaml:"social_range"` // neighbor cutoff for the social force
	RelaxTime          float64 `yaml:"relax_time"`
}

// GroupConfig holds group walking force parameters.
type GroupConfig struct {
	FactorCoherence float64 `yaml:"factor_coherence"`
	FactorRepulsion float64 `yaml:"factor_repulsion"`
	FactorGaze      float64 `yaml:"factor_gaze"`
	RepulsionRange  float64 `yaml:"repulsion_range"`   // member overlap distance
	VisionHalfAngle float64 `yaml:"vision_half_angle"` // radians
}

// ScriptsConfig holds movement-script generator parameters.
type ScriptsConfig struct {
	LinearRate        float64 `yaml:"linear_rate"`        // m/s during scripted translation
	AngularRate       float64 `yaml:"angular_rate"`       // rad/s during scripted rotation
	AngleTolerance    float64 `yaml:"angle_tolerance"`    // rotation phase stops within this
	DistanceTolerance float64 `yaml:"distance_tolerance"` // translation phase stops within this
	TravelDistance    float64 `yaml:"travel_distance"`    // scripted translation length
	LeadTime          float64 `yaml:"lead_time"`          // playback starts this far in the future
	OvershootMargin   float64 `yaml:"overshoot_margin"`   // abort when remaining > original + margin
}

// RobotConfig holds robot operating parameters.
type RobotConfig struct {
	Mode        string            `yaml:"mode"`      // teleoperated | controlled | social-drive
	WaitTime    float64           `yaml:"wait_time"` // controlled mode holds still until this
	SocialDrive SocialDriveConfig `yaml:"social_drive"`
}

// SocialDriveConfig holds the force overrides for social-drive robots.
type SocialDriveConfig struct {
	VMax           float64 `yaml:"vmax"`
	Radius         float64 `yaml:"radius"`
	FactorDesired  float64 `yaml:"factor_desired"`
	FactorObstacle float64 `yaml:"factor_obstacle"`
	SocialScale    float64 `yaml:"social_scale"` // multiplies the configured social factor
}

// SpeedsConfig holds per-type speed parameters.
type SpeedsConfig struct {
	WalkMean          float64 `yaml:"walk_mean"`   // preferred walking speed, Normal mean
	WalkStddev        float64 `yaml:"walk_stddev"` // preferred walking speed, Normal stddev
	RunScale          float64 `yaml:"run_scale"`   // vmax multiplier while Running
	ElderVMax         float64 `yaml:"elder_vmax"`
	ElderDesiredScale float64 `yaml:"elder_desired_scale"`
	Radius            float64 `yaml:"radius"` // pedestrian body radius
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindowSec float64 `yaml:"stats_window_sec"` // stats flush cadence
	TraceEvery     int     `yaml:"trace_every"`      // pose trace sampling interval in ticks (0 = off)
	PerfWindow     int     `yaml:"perf_window"`      // phase-timing averaging window in ticks
}

// FeedConfig holds the live WebSocket feed parameters.
type FeedConfig struct {
	Addr    string `yaml:"addr"`
	Enabled bool   `yaml:"enabled"`
}

// RecorderConfig holds run-registry parameters.
type RecorderConfig struct {
	Path    string `yaml:"path"`
	Enabled bool   `yaml:"enabled"`
}

// ViewerConfig holds display settings.
type ViewerConfig struct {
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	TargetFPS int     `yaml:"target_fps"`
	Scale     float64 `yaml:"scale"` // pixels per world unit
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	StatsWindowTicks int64               // Telemetry.StatsWindowSec in ticks
	RobotMode        components.RobotMode // parsed Robot.Mode
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if
// path is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() error {
	if c.Sim.Timestep <= 0 {
		return fmt.Errorf("sim.timestep must be positive, got %v", c.Sim.Timestep)
	}

	ticks := int64(c.Telemetry.StatsWindowSec / c.Sim.Timestep)
	if ticks < 1 {
		ticks = 1
	}
	c.Derived.StatsWindowTicks = ticks

	mode, ok := components.ParseRobotMode(c.Robot.Mode)
	if !ok {
		return fmt.Errorf("unknown robot mode %q", c.Robot.Mode)
	}
	c.Derived.RobotMode = mode

	return nil
}

// BaseDuration returns the configured base duration for a timed state, or
// 0 for states that are not duration-limited.
func (c *Config) BaseDuration(s components.StateID) float64 {
	switch s {
	case components.StateWaiting:
		return c.Durations.Waiting
	case components.StateQueueing:
		return c.Durations.Queueing
	case components.StateShopping:
		return c.Durations.Shopping
	case components.StateWorking:
		return c.Durations.Working
	case components.StateLiftingForks:
		return c.Durations.LiftingForks
	case components.StateLoading:
		return c.Durations.Loading
	case components.StateLoweringForks:
		return c.Durations.LoweringForks
	case components.StateTalking:
		return c.Durations.Talking
	case components.StateTellStory:
		return c.Durations.TellStory
	case components.StateGroupTalking:
		return c.Durations.GroupTalking
	case components.StateTalkingAndWalking:
		return c.Durations.TalkingAndWalking
	case components.StateRequestingService:
		return c.Durations.RequestingService
	case components.StateReceivingService, components.StateProvidingService:
		return c.Durations.ReceivingService
	default:
		return 0
	}
}

// YAML serializes the configuration.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := c.YAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
