package logger

import (
	"encoding/hex"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/blake2b"
)

// New builds the process logger. Production gets JSON with ISO8601 timestamps,
// everything else the colored development console.
func New(appEnv string) (*zap.Logger, error) {
	var config zap.Config
	if appEnv == "prod" || appEnv == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return config.Build()
}

// EmailHash returns a short stable correlation id for an email so logs never
// carry the address itself.
func EmailHash(email string) string {
	sum := blake2b.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:8])
}

// Email is the zap field used for email correlation.
func Email(email string) zap.Field {
	return zap.String("email_hash", EmailHash(email))
}
