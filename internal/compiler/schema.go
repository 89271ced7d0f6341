package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/strictfetch/internal/schema"
)

// CompileSchema compiles every model under the top-level "model" struct and
// returns a finalized registry.
func CompileSchema(v cue.Value) (*schema.Registry, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	modelsVal := v.LookupPath(cue.ParsePath("model"))
	if !modelsVal.Exists() {
		return nil, &CompileError{Field: "model", Message: "no models declared", Pos: v.Pos()}
	}

	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	reg := schema.NewRegistry()
	for iter.Next() {
		m, err := CompileModel(iter.Value())
		if err != nil {
			return nil, err
		}
		if err := reg.Add(m); err != nil {
			return nil, &CompileError{Field: "model." + iter.Label(), Message: err.Error(), Pos: iter.Value().Pos()}
		}
	}

	if err := reg.Finalize(); err != nil {
		return nil, &CompileError{Field: "model", Message: err.Error()}
	}

	return reg, nil
}

// CompileSchemaString compiles CUE source text. Used by tests and fixtures.
func CompileSchemaString(src string) (*schema.Registry, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	return CompileSchema(v)
}

// LoadSchemaDir loads every .cue file in dir as one CUE instance and
// compiles it.
func LoadSchemaDir(dir string) (*schema.Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("schema directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning schema directory: %w", err)
	}
	if len(cueFiles) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	return CompileSchema(value)
}

// FindCUEFiles returns the .cue files directly inside dir.
func FindCUEFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}
