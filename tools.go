//go:build tools
// +build tools

// Package tools declares tool dependencies for this module.
//
// The mockgen import keeps the generator version pinned in go.mod so that
// `go generate ./...` works on a fresh checkout.
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
