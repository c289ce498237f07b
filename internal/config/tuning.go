package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the externally configured matching parameters.
// Fields are pointers so a partial JSON file only overrides what it names;
// the Get* accessors supply defaults for everything else.
type TuningConfig struct {
	// Triangle similarity matching
	TriangleMatchRadius *float64 `json:"triangle_match_radius,omitempty"` // tolerance in (ba,ca) ratio space
	NBright             *int     `json:"nbright,omitempty"`               // brightest-N stars used for triangles

	// Star matching and refinement
	StarMatchRadius *float64 `json:"star_match_radius,omitempty"` // pixel tolerance for a star match
	MinReqPairs     *int     `json:"min_req_pairs,omitempty"`
	MaxIterations   *int     `json:"max_iterations,omitempty"`
	HaltSigma       *float64 `json:"halt_sigma,omitempty"`
	MaxDist         *float64 `json:"max_dist,omitempty"` // hard reprojection ceiling, pixels

	// Transform model: "linear", "quadratic" or "cubic"
	TransformOrder *string `json:"transform_order,omitempty"`

	// Optional scale constraint on the fitted transform
	ScaleMin *float64 `json:"scale_min,omitempty"`
	ScaleMax *float64 `json:"scale_max,omitempty"`

	// Optional rotation constraint, degrees
	RotationAngle *float64 `json:"rotation_angle,omitempty"`
	RotationTol   *float64 `json:"rotation_tol,omitempty"`

	// Orchestrator params
	MaxAttempts      *int    `json:"max_attempts,omitempty"`
	NBrightIncrement *int    `json:"nbright_increment,omitempty"` // candidate-pool widening per attempt
	Matcher          *string `json:"matcher,omitempty"`           // "votes" or "quick"
	Workers          *int    `json:"workers,omitempty"`           // 0 means GOMAXPROCS
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and stay under the max file size. Fields omitted
// from the JSON retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching upward from the current directory. Panics
// if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are internally consistent.
func (c *TuningConfig) Validate() error {
	if c.TriangleMatchRadius != nil && *c.TriangleMatchRadius <= 0 {
		return fmt.Errorf("triangle_match_radius must be positive, got %f", *c.TriangleMatchRadius)
	}
	if c.StarMatchRadius != nil && *c.StarMatchRadius <= 0 {
		return fmt.Errorf("star_match_radius must be positive, got %f", *c.StarMatchRadius)
	}
	if c.NBright != nil && *c.NBright < 3 {
		return fmt.Errorf("nbright must be at least 3, got %d", *c.NBright)
	}
	if c.MinReqPairs != nil && *c.MinReqPairs < 3 {
		return fmt.Errorf("min_req_pairs must be at least 3, got %d", *c.MinReqPairs)
	}
	if c.TransformOrder != nil {
		switch *c.TransformOrder {
		case "linear", "quadratic", "cubic":
		default:
			return fmt.Errorf("transform_order must be linear, quadratic or cubic, got %q", *c.TransformOrder)
		}
	}
	if c.ScaleMin != nil && c.ScaleMax != nil && *c.ScaleMin > *c.ScaleMax {
		return fmt.Errorf("scale_min %f exceeds scale_max %f", *c.ScaleMin, *c.ScaleMax)
	}
	if c.RotationTol != nil && *c.RotationTol < 0 {
		return fmt.Errorf("rotation_tol must be non-negative, got %f", *c.RotationTol)
	}
	if c.Matcher != nil {
		switch *c.Matcher {
		case "votes", "quick":
		default:
			return fmt.Errorf("matcher must be votes or quick, got %q", *c.Matcher)
		}
	}
	return nil
}

// GetTriangleMatchRadius returns the triangle_match_radius value or the default.
func (c *TuningConfig) GetTriangleMatchRadius() float64 {
	if c.TriangleMatchRadius == nil {
		return 0.002
	}
	return *c.TriangleMatchRadius
}

// GetNBright returns the nbright value or the default.
func (c *TuningConfig) GetNBright() int {
	if c.NBright == nil {
		return 20
	}
	return *c.NBright
}

// GetStarMatchRadius returns the star_match_radius value or the default.
func (c *TuningConfig) GetStarMatchRadius() float64 {
	if c.StarMatchRadius == nil {
		return 5.0
	}
	return *c.StarMatchRadius
}

// GetMinReqPairs returns the min_req_pairs value or the default.
func (c *TuningConfig) GetMinReqPairs() int {
	if c.MinReqPairs == nil {
		return 10
	}
	return *c.MinReqPairs
}

// GetMaxIterations returns the max_iterations value or the default.
func (c *TuningConfig) GetMaxIterations() int {
	if c.MaxIterations == nil {
		return 3
	}
	return *c.MaxIterations
}

// GetHaltSigma returns the halt_sigma value or the default.
func (c *TuningConfig) GetHaltSigma() float64 {
	if c.HaltSigma == nil {
		return 1.0
	}
	return *c.HaltSigma
}

// GetMaxDist returns the max_dist value or the default.
func (c *TuningConfig) GetMaxDist() float64 {
	if c.MaxDist == nil {
		return 50.0
	}
	return *c.MaxDist
}

// GetTransformOrder returns the transform_order value or the default.
func (c *TuningConfig) GetTransformOrder() string {
	if c.TransformOrder == nil {
		return "linear"
	}
	return *c.TransformOrder
}

// ScaleRange returns the optional scale constraint, or nil when unset.
func (c *TuningConfig) ScaleRange() (min, max float64, ok bool) {
	if c.ScaleMin == nil || c.ScaleMax == nil {
		return 0, 0, false
	}
	return *c.ScaleMin, *c.ScaleMax, true
}

// Rotation returns the optional rotation constraint, or ok=false when unset.
func (c *TuningConfig) Rotation() (angle, tol float64, ok bool) {
	if c.RotationAngle == nil {
		return 0, 0, false
	}
	tol = 5.0
	if c.RotationTol != nil {
		tol = *c.RotationTol
	}
	return *c.RotationAngle, tol, true
}

// GetMaxAttempts returns the max_attempts value or the default.
func (c *TuningConfig) GetMaxAttempts() int {
	if c.MaxAttempts == nil {
		return 3
	}
	return *c.MaxAttempts
}

// GetNBrightIncrement returns the nbright_increment value or the default.
func (c *TuningConfig) GetNBrightIncrement() int {
	if c.NBrightIncrement == nil {
		return 5
	}
	return *c.NBrightIncrement
}

// GetMatcher returns the matcher value or the default.
func (c *TuningConfig) GetMatcher() string {
	if c.Matcher == nil {
		return "votes"
	}
	return *c.Matcher
}

// GetWorkers returns the workers value or the default (0 = GOMAXPROCS).
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}
