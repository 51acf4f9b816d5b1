package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvLoader returns a Loader that reads the specified environment
// variables. Missing variables are silently omitted from the result map.
func EnvLoader(keys ...string) Loader {
	return func() (map[string]string, error) {
		vals := make(map[string]string, len(keys))
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				vals[k] = v
			}
		}
		return vals, nil
	}
}

// DirLoader returns a Loader that reads each regular file in dir as one
// secret: the file name is the key, the trimmed contents the value. This
// is the layout container orchestrators use for mounted secrets. A
// missing directory yields an empty map, not an error.
func DirLoader(dir string) Loader {
	return func() (map[string]string, error) {
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read secrets dir %s: %w", dir, err)
		}

		vals := make(map[string]string, len(entries))
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				return nil, fmt.Errorf("read secret %s: %w", e.Name(), err)
			}
			vals[e.Name()] = strings.TrimSpace(string(raw))
		}
		return vals, nil
	}
}

// Chain returns a Loader that merges the results of the given loaders
// in order, later loaders overriding earlier ones. Any loader error
// aborts the whole load so a partial view is never installed.
func Chain(loaders ...Loader) Loader {
	return func() (map[string]string, error) {
		merged := make(map[string]string)
		for _, load := range loaders {
			vals, err := load()
			if err != nil {
				return nil, err
			}
			for k, v := range vals {
				merged[k] = v
			}
		}
		return merged, nil
	}
}
