package logging

import "go.uber.org/zap"

// New returns a sugared logger off the globally installed zap logger, named
// after the component using it
func New(component string) *zap.SugaredLogger {
	return zap.L().Named(component).Sugar()
}
