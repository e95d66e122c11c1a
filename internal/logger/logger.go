package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kailas-cloud/storefront/internal/version"
)

// NewLogger creates a zap logger for the given environment.
// prod uses JSON output, local/dev use colored console output.
// levelOverride (if non-empty) overrides the log level: debug, info, warn, error.
func NewLogger(env string, levelOverride ...string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "prod":
		cfg = zap.NewProductionConfig()
	case "local", "dev", "docker":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown environment %q for logger", env)
	}

	if len(levelOverride) > 0 && levelOverride[0] != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(levelOverride[0])); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", levelOverride[0], err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	l, err := cfg.Build(
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service", "storefront"), zap.String("version", version.Version)),
	)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

// Subject returns a masked "subject" field. OTP subjects are emails, phone
// numbers or user IDs and never appear in logs verbatim.
func Subject(s string) zap.Field {
	return zap.String("subject", MaskSubject(s))
}

// MaskSubject keeps the first character and, for emails, the domain.
func MaskSubject(s string) string {
	if s == "" {
		return ""
	}
	local, domainPart, isEmail := strings.Cut(s, "@")
	if !isEmail {
		local = s
	}
	masked := "***"
	if local != "" {
		masked = local[:1] + masked
	}
	if len(local) > 4 && !isEmail {
		masked += local[len(local)-2:]
	}
	if isEmail {
		masked += "@" + domainPart
	}
	return masked
}
