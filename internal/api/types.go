package api

import (
	"encoding/json"
	"time"

	"github.com/MJE43/visual-replay-go/internal/render"
	"github.com/MJE43/visual-replay-go/internal/scripting"
	"github.com/MJE43/visual-replay-go/internal/seeds"
	"github.com/MJE43/visual-replay-go/internal/store"
	"github.com/MJE43/visual-replay-go/internal/visuals"
)

// EngineError represents a structured error response with context
type EngineError struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e EngineError) Error() string {
	return e.Message
}

// Error types with proper categorization
const (
	// Input validation errors
	ErrTypeInvalidParams  = "invalid_params"
	ErrTypeInvalidOutcome = "invalid_outcome"
	ErrTypeInvalidSeed    = "invalid_seed"
	ErrTypeValidation     = "validation_error"

	// Effect and script errors
	ErrTypeEffectNotFound   = "effect_not_found"
	ErrTypeNotScannable     = "effect_not_scannable"
	ErrTypeScript           = "script_error"
	ErrTypeNondeterministic = "nondeterministic_render"

	// Storage errors
	ErrTypeNotFound = "not_found"

	// System errors
	ErrTypeTimeout            = "timeout"
	ErrTypeInternal           = "internal_error"
	ErrTypeServiceUnavailable = "service_unavailable"
)

// ErrorCategory represents error categories for monitoring
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryEffect     ErrorCategory = "effect"
	CategoryStorage    ErrorCategory = "storage"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeInvalidParams, ErrTypeInvalidOutcome, ErrTypeInvalidSeed, ErrTypeValidation:
		return CategoryValidation
	case ErrTypeEffectNotFound, ErrTypeNotScannable, ErrTypeScript, ErrTypeNondeterministic:
		return CategoryEffect
	case ErrTypeNotFound:
		return CategoryStorage
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

// VersionInfo contains build and engine version information
type VersionInfo struct {
	Version       string `json:"version"`
	EngineVersion string `json:"engine_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
}

// EffectsResponse lists the registered effects and seed namespaces
type EffectsResponse struct {
	Effects       []visuals.EffectSpec `json:"effects"`
	Namespaces    []seeds.Namespace    `json:"namespaces"`
	EngineVersion string               `json:"engine_version"`
}

// SeedRequest builds a seed under a registered namespace. At and BucketMs
// only apply to ambient namespaces.
type SeedRequest struct {
	Namespace string     `json:"namespace" validate:"required,max=64"`
	Fields    []any      `json:"fields,omitempty" validate:"max=16"`
	At        *time.Time `json:"at,omitempty"`
	BucketMs  int64      `json:"bucket_ms,omitempty" validate:"gte=0,lte=3600000"`
}

// SeedResponse is a built seed
type SeedResponse struct {
	Seed     string        `json:"seed"`
	SeedHash string        `json:"seed_hash"`
	Mode     seeds.Mode    `json:"mode"`
	Bucket   *seeds.Bucket `json:"bucket,omitempty"`
	Echo     SeedRequest   `json:"echo"`
}

// DrawRequest asks for the first Count floats of a seed
type DrawRequest struct {
	Seed  string `json:"seed" validate:"required,max=1024"`
	Count int    `json:"count" validate:"min=1,max=10000"`
}

// DrawResponse carries raw generator output for client cross-checks
type DrawResponse struct {
	SeedHash      string    `json:"seed_hash"`
	Floats        []float64 `json:"floats"`
	EngineVersion string    `json:"engine_version"`
}

// RenderResponse is an audited frame plus the request that produced it
type RenderResponse struct {
	*render.Result
	Echo render.Request `json:"echo"`
}

// VerifyResponse reports a verification verdict
type VerifyResponse struct {
	*render.VerifyResult
	EngineVersion string `json:"engine_version"`
}

// StoredRenderResponse is a persisted render with its frame decoded
type StoredRenderResponse struct {
	Render *store.Render   `json:"render"`
	Frame  json.RawMessage `json:"frame"`
}

// RunResponse is a stored scan run with one page of its hits
type RunResponse struct {
	Run  *store.Run      `json:"run"`
	Hits *store.HitsPage `json:"hits"`
}

// ScriptResponse is the output of a scripted render
type ScriptResponse struct {
	*scripting.Result
	EngineVersion string `json:"engine_version"`
}

// ScriptRunResponse is a recorded script run with its request and output
// decoded
type ScriptRunResponse struct {
	Run     *store.ScriptRun `json:"run"`
	Request json.RawMessage  `json:"request,omitempty"`
	Output  json.RawMessage  `json:"output,omitempty"`
}

// ReplayResponse reports whether a recorded script still reproduces
type ReplayResponse struct {
	*scripting.ReplayResult
	EngineVersion string `json:"engine_version"`
}
