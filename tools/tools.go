//go:build tools
// +build tools

// Package tools pins the oapi-codegen version used for the apiv1 server
// interface and parameter binding. Excluded from normal builds.
package tools

import (
	_ "github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen"
)
