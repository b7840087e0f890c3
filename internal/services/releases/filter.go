// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package releases

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/autobrr/liberry/internal/models"
)

// FilterEnv is the environment a release filter expression is evaluated against.
// Example: `Size < 200 * 1024 * 1024 && Seeders > 0`.
type FilterEnv struct {
	Title   string
	Size    int64
	Seeders int
	Indexer string
	Year    int
	Group   string
	Ext     string
}

// CompileFilter compiles a boolean release filter. An empty expression yields a nil program.
func CompileFilter(src string) (*vm.Program, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, nil
	}

	program, err := expr.Compile(src, expr.Env(FilterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile release filter: %w", err)
	}
	return program, nil
}

func filterEnvFor(c models.CandidateRelease) FilterEnv {
	return FilterEnv{
		Title:   c.Title,
		Size:    c.SizeBytes,
		Seeders: c.SeedCount(),
		Indexer: c.Indexer,
		Year:    c.Year,
		Group:   c.Group,
		Ext:     c.Ext,
	}
}

func evalFilter(program *vm.Program, c models.CandidateRelease) (bool, error) {
	result, err := expr.Run(program, filterEnvFor(c))
	if err != nil {
		return false, err
	}

	keep, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("release filter returned %T, want bool", result)
	}
	return keep, nil
}
