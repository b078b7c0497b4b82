package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MJE43/visual-replay-go/internal/engine"
	"github.com/MJE43/visual-replay-go/internal/scan"
	"github.com/MJE43/visual-replay-go/internal/seeds"
)

// SecurityLogger writes audit records. Seed text never reaches the log: only
// its hash does.
type SecurityLogger struct {
	logger *slog.Logger
}

// NewSecurityLogger creates a security logger on top of base.
func NewSecurityLogger(base *slog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: base.With("component", "security")}
}

// LogRenderOperation logs a render or verify call.
func (sl *SecurityLogger) LogRenderOperation(requestID, action, effect, seedHash string, params map[string]any, metric float64) {
	sl.logger.Info("render_operation",
		"request_id", requestID,
		"action", action,
		"effect", effect,
		"seed_hash", seedHash,
		"params", sl.sanitizeParams(params),
		"metric", metric,
		"engine_version", engine.Version,
	)
}

// LogScanOperation logs scan operations with security-safe parameters
func (sl *SecurityLogger) LogScanOperation(requestID string, req scan.Request) {
	sl.logger.Info("scan_operation",
		"request_id", requestID,
		"effect", req.Effect,
		"result_range", fmt.Sprintf("%d-%d", req.ResultStart, req.ResultEnd),
		"target_op", string(req.TargetOp),
		"target_val", req.TargetVal,
		"limit", req.Limit,
		"timeout_ms", req.TimeoutMs,
		"params", sl.sanitizeParams(req.Params),
		"engine_version", engine.Version,
	)
}

// LogScriptOperation logs a script run by the hash of its source.
func (sl *SecurityLogger) LogScriptOperation(requestID, source, seedHash string, draws int, durationMs int64) {
	sl.logger.Info("script_operation",
		"request_id", requestID,
		"source_hash", hashSeed(source),
		"source_bytes", len(source),
		"seed_hash", seedHash,
		"draws", draws,
		"duration_ms", durationMs,
		"engine_version", engine.Version,
	)
}

// LogSecurityEvent logs security-related events (failed validations, suspicious activity)
func (sl *SecurityLogger) LogSecurityEvent(requestID, eventType, description string, context map[string]any, remoteAddr string) {
	sl.logger.Warn("security_event",
		"request_id", requestID,
		"type", eventType,
		"description", description,
		"context", sl.sanitizeContext(context),
		"remote_addr", remoteAddr,
	)
}

// LogAuditEvent logs audit events for compliance and debugging
func (sl *SecurityLogger) LogAuditEvent(requestID, action, resource, outcome string, details map[string]any) {
	sl.logger.Info("audit_event",
		"request_id", requestID,
		"action", action,
		"resource", resource,
		"outcome", outcome,
		"details", sl.sanitizeContext(details),
	)
}

// LogSystemStartup logs system startup information
func (sl *SecurityLogger) LogSystemStartup(addr string, config map[string]any) {
	sl.logger.Info("system_startup",
		"addr", addr,
		"config", sl.sanitizeContext(config),
		"version", Version,
		"engine_version", engine.Version,
		"git_commit", GitCommit,
		"build_time", BuildTime,
	)
}

// LogSystemShutdown logs system shutdown information
func (sl *SecurityLogger) LogSystemShutdown(reason string, uptime time.Duration) {
	sl.logger.Info("system_shutdown",
		"reason", reason,
		"uptime", uptime.String(),
		"engine_version", engine.Version,
	)
}

// sanitizeParams hashes seed-like parameters and redacts secrets
func (sl *SecurityLogger) sanitizeParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for key, value := range params {
		switch key {
		case "seed", "seed_text", "server_seed", "client_seed", "source":
			if s, ok := value.(string); ok {
				sanitized[key+"_hash"] = hashSeed(s)
			} else {
				sanitized[key+"_hash"] = "non_string_value"
			}
		case "secret", "password", "token", "api_key", "authorization":
			sanitized[key] = "[REDACTED]"
		default:
			sanitized[key] = value
		}
	}
	return sanitized
}

// sanitizeContext removes sensitive data from context maps
func (sl *SecurityLogger) sanitizeContext(context map[string]any) map[string]any {
	if context == nil {
		return nil
	}

	sanitized := make(map[string]any, len(context))
	for key, value := range context {
		switch key {
		case "seed", "seed_text", "server_seed", "client_seed", "source":
			if s, ok := value.(string); ok {
				sanitized[key+"_hash"] = hashSeed(s)
			} else {
				sanitized[key+"_hash"] = fmt.Sprintf("non_string_value_%T", value)
			}
		case "secret", "password", "token", "api_key", "authorization":
			sanitized[key] = "[REDACTED]"
		case "params":
			if p, ok := value.(map[string]any); ok {
				sanitized[key] = sl.sanitizeParams(p)
			} else {
				sanitized[key] = value
			}
		default:
			sanitized[key] = value
		}
	}
	return sanitized
}

// hashSeed creates a short SHA256 hash of seed text for logging
func hashSeed(seed string) string {
	if seed == "" {
		return "empty"
	}
	return seeds.HashText(seed)
}
