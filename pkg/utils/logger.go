package utils

import "go.uber.org/zap"

// NewLogger returns a zap logger tagged with the service name. When debug is true it uses the
// development config (human-readable, debug level); otherwise the production config
// (JSON, info level). Both write to stderr so command output on stdout stays clean.
func NewLogger(debug bool, fields ...zap.Field) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(append([]zap.Field{zap.String("service", "vaultsync")}, fields...)...), nil
}
