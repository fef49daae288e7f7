package redis_functions

import (
	"context"
	"embed"
	"fmt"
	"path"
	"regexp"
	"sort"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//go:embed *.lua
var fs embed.FS

var (
	libraryHeader = regexp.MustCompile(`^#!lua name=(\w+)`)
	registration  = regexp.MustCompile(`redis\.register_function\(\s*'(\w+)'`)
)

// Library is one embedded Lua library and the functions it registers.
type Library struct {
	Name      string
	File      string
	Functions []string
	code      string
}

// Libraries parses the embedded Lua sources.
func Libraries() ([]Library, error) {
	files, err := fs.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("read embed dir: %w", err)
	}
	var libs []Library
	for _, f := range files {
		if f.IsDir() || path.Ext(f.Name()) != ".lua" {
			continue
		}
		code, err := fs.ReadFile(f.Name())
		if err != nil {
			return nil, err
		}
		m := libraryHeader.FindSubmatch(code)
		if m == nil {
			return nil, fmt.Errorf("%s: missing '#!lua name=' header", f.Name())
		}
		lib := Library{Name: string(m[1]), File: f.Name(), code: string(code)}
		for _, r := range registration.FindAllSubmatch(code, -1) {
			lib.Functions = append(lib.Functions, string(r[1]))
		}
		sort.Strings(lib.Functions)
		libs = append(libs, lib)
	}
	return libs, nil
}

// LoadAll loads or replaces every embedded library in Redis. Each name in
// required must be registered by one of them, so a ledger never boots against
// a library that lacks a function it calls.
func LoadAll(ctx context.Context, rdb redis.Cmdable, required ...string) error {
	libs, err := Libraries()
	if err != nil {
		return err
	}
	registered := map[string]string{}
	for _, lib := range libs {
		for _, fn := range lib.Functions {
			registered[fn] = lib.Name
		}
	}
	for _, fn := range required {
		if _, ok := registered[fn]; !ok {
			return fmt.Errorf("redis function %q is not registered by any embedded library", fn)
		}
	}

	for _, lib := range libs {
		name, err := rdb.FunctionLoadReplace(ctx, lib.code).Result()
		if err != nil {
			return fmt.Errorf("load lua %s: %w", lib.File, err)
		}
		zap.L().Info("lua library loaded",
			zap.String("file", lib.File),
			zap.String("library", name),
			zap.Strings("functions", lib.Functions),
		)
	}
	return nil
}
