package utils

import "go.uber.org/zap"

// NewLogger builds the production logger used across the service.
func NewLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	return logger
}
