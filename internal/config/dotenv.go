package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// DotenvLookup layers the given .env files under base. Keys present in base
// always win; among files, earlier files win. Missing files are skipped.
func DotenvLookup(base LookupFunc, files ...string) (LookupFunc, error) {
	values := map[string]string{}
	for i := len(files) - 1; i >= 0; i-- {
		parsed, err := godotenv.Read(files[i])
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read env file %q: %w", files[i], err)
		}
		for key, value := range parsed {
			values[key] = value
		}
	}
	return func(key string) (string, bool) {
		if base != nil {
			if value, ok := base(key); ok {
				return value, true
			}
		}
		value, ok := values[key]
		return value, ok
	}, nil
}
