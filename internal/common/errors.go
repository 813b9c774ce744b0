// Package common provides shared utilities and types used across the application.
package common

import "errors"

// Pipeline errors.
var (
	ErrRasterization = errors.New("rasterization failed")
	ErrProvider      = errors.New("model provider failed")
	ErrPatternParse  = errors.New("stored pattern could not be parsed")
)
