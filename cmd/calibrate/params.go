// Package main provides CMA-ES calibration of the force parameters
// against the configured empirical walking-speed distribution.
package main

import (
	"github.com/ambleworks/crowd/config"
)

// ParamSpec defines a single calibratable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all calibratable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of calibratable parameters.
// social_range is locked at its default: it is a neighbor cutoff, not a
// behavior knob. The group factors are locked too; they come calibrated
// from the group-walking literature and drift badly when fitted against
// a speed-only target.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "factor_desired", Path: "forces.factor_desired", Min: 0.2, Max: 4.0, Default: 1.0},
			{Name: "factor_social", Path: "forces.factor_social", Min: 0.5, Max: 8.0, Default: 2.1},
			{Name: "factor_obstacle", Path: "forces.factor_obstacle", Min: 1.0, Max: 30.0, Default: 10.0},
			{Name: "factor_keep_distance", Path: "forces.factor_keep_distance", Min: 0.0, Max: 4.0, Default: 1.0},
			{Name: "factor_random", Path: "forces.factor_random", Min: 0.0, Max: 0.5, Default: 0.1},
			{Name: "obstacle_sigma", Path: "forces.obstacle_sigma", Min: 0.2, Max: 2.0, Default: 0.8},
			{Name: "relax_time", Path: "forces.relax_time", Min: 0.2, Max: 1.5, Default: 0.5},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)

	cfg.Forces.FactorDesired = clamped[0]
	cfg.Forces.FactorSocial = clamped[1]
	cfg.Forces.FactorObstacle = clamped[2]
	cfg.Forces.FactorKeepDistance = clamped[3]
	cfg.Forces.FactorRandom = clamped[4]
	cfg.Forces.ObstacleSigma = clamped[5]
	cfg.Forces.RelaxTime = clamped[6]
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Forces.FactorDesired,
		cfg.Forces.FactorSocial,
		cfg.Forces.FactorObstacle,
		cfg.Forces.FactorKeepDistance,
		cfg.Forces.FactorRandom,
		cfg.Forces.ObstacleSigma,
		cfg.Forces.RelaxTime,
	}
}
