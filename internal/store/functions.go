package store

import (
	"database/sql/driver"
	"fmt"
	"sync"

	sqlite "modernc.org/sqlite"

	"github.com/imagevault/imagevault/internal/distance"
)

var registerOnce sync.Once

// registerDistanceFunctions registers hamming_distance, byte_distance, and
// cosine_distance as deterministic SQLite scalar functions. Registration is
// process-wide in modernc.org/sqlite, so it runs exactly once regardless of
// how many stores are opened.
func registerDistanceFunctions() {
	registerOnce.Do(func() {
		for name, fn := range distance.Registry() {
			sqlite.MustRegisterDeterministicScalarFunction(name, 2, scalarAdapter(name, fn))
		}
	})
}

// scalarAdapter wraps a distance.Func as a SQLite scalar function over two
// BLOB arguments. NULL in either argument yields NULL, letting ranked scans
// skip rows without a stored hash instead of erroring.
func scalarAdapter(name string, fn distance.Func) func(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return func(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s: expected 2 arguments, got %d", name, len(args))
		}
		if args[0] == nil || args[1] == nil {
			return nil, nil
		}

		a, ok := args[0].([]byte)
		if !ok {
			return nil, fmt.Errorf("%s: first argument is not a blob", name)
		}
		b, ok := args[1].([]byte)
		if !ok {
			return nil, fmt.Errorf("%s: second argument is not a blob", name)
		}

		d, err := fn(a, b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return d, nil
	}
}
