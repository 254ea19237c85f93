//go:build tools

package tools

// Tool dependencies pinned through go.mod.
import (
	_ "github.com/pressly/goose/v3/cmd/goose"
)
