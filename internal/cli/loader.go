package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/bindery/internal/router"
)

// RouteTable is a loaded route file: the history root and the routes in
// priority order.
type RouteTable struct {
	Root   string        `yaml:"root" json:"root"`
	Routes []RouteConfig `yaml:"routes" json:"routes"`
}

// RouteConfig is one route table entry.
type RouteConfig struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Name    string `yaml:"name" json:"name"`

	pos token.Pos
}

// LoadError represents an error that occurred while loading a route table.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeParseFailed = "E007" // YAML parse failed

	// Route table validation errors
	ErrCodeInvalidPattern = "E201" // Pattern does not compile
	ErrCodeNoRoutes       = "E202" // Table defines no routes
	ErrCodeMissingName    = "E203" // Route without a name
)

// LoadRoutes loads a route table from a YAML file, a CUE file or a directory
// of CUE files. YAML tables list routes in order:
//
//	root: /app
//	routes:
//	  - {pattern: "search/:query", name: search}
//
// CUE tables map patterns to names; field order is route order:
//
//	root: "/app"
//	routes: {
//		"search/:query": "search"
//	}
func LoadRoutes(path string) (*RouteTable, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("route table not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing route table: %v", err)}
	}

	var table *RouteTable
	switch {
	case info.IsDir():
		table, err = loadCUEDir(path)
	case filepath.Ext(path) == ".cue":
		table, err = loadCUEFile(path)
	default:
		table, err = loadYAML(path)
	}
	if err != nil {
		return nil, err
	}
	if err := validateRoutes(table); err != nil {
		return nil, err
	}
	return table, nil
}

func loadYAML(path string) (*RouteTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading route table: %v", err)}
	}

	var table RouteTable
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&table); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("parsing YAML: %v", err)}
	}
	return &table, nil
}

func loadCUEFile(path string) (*RouteTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading route table: %v", err)}
	}

	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return decodeCUETable(value)
}

func loadCUEDir(dir string) (*RouteTable, error) {
	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return decodeCUETable(value)
}

func decodeCUETable(value cue.Value) (*RouteTable, error) {
	table := &RouteTable{}

	if root := value.LookupPath(cue.ParsePath("root")); root.Exists() {
		s, err := root.String()
		if err != nil {
			return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("root: %v", err), Pos: root.Pos()}
		}
		table.Root = s
	}

	routes := value.LookupPath(cue.ParsePath("routes"))
	if !routes.Exists() {
		return table, nil
	}
	iter, err := routes.Fields()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating routes: %v", err), Pos: routes.Pos()}
	}
	for iter.Next() {
		v := iter.Value()
		name, err := v.String()
		if err != nil {
			return nil, &LoadError{
				Code:    ErrCodeMissingName,
				Message: fmt.Sprintf("routes.%s: route name must be a string", iter.Selector()),
				Pos:     v.Pos(),
			}
		}
		table.Routes = append(table.Routes, RouteConfig{
			Pattern: iter.Selector().Unquoted(),
			Name:    name,
			pos:     v.Pos(),
		})
	}
	return table, nil
}

func validateRoutes(table *RouteTable) error {
	if len(table.Routes) == 0 {
		return &LoadError{Code: ErrCodeNoRoutes, Message: "no routes defined"}
	}
	for i, rt := range table.Routes {
		if rt.Name == "" {
			return &LoadError{Code: ErrCodeMissingName, Message: fmt.Sprintf("routes[%d]: name is required", i), Pos: rt.pos}
		}
		if _, err := router.Compile(rt.Pattern); err != nil {
			return &LoadError{
				Code:    ErrCodeInvalidPattern,
				Message: fmt.Sprintf("routes[%d] %q: %v", i, rt.Pattern, err),
				Pos:     rt.pos,
			}
		}
	}
	return nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// loadErrorCode returns the code of a LoadError, or ErrCodeGeneric.
func loadErrorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	return ErrCodeGeneric
}
