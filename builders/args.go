package builders

import (
	"fmt"
	"sort"
	"strings"
)

// ArgVersion is the argument every kind uses for the version to build.
const ArgVersion = "version"

// Args are the key=value arguments passed to a builder.
type Args map[string]string

// VersionArgs returns the arguments for building version.
func VersionArgs(version string) Args {
	return Args{ArgVersion: version}
}

func (a Args) Version() string {
	return a[ArgVersion]
}

// Require returns ErrMissingArg naming the first absent or empty key.
func (a Args) Require(keys ...string) error {
	for _, key := range keys {
		if strings.TrimSpace(a[key]) == "" {
			return fmt.Errorf("%w: %s", ErrMissingArg, key)
		}
	}
	return nil
}

// Pairs renders the arguments as sorted key=value strings.
func (a Args) Pairs() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+a[k])
	}
	return pairs
}

// ParseArgs parses key=value strings. Values may contain '='.
func ParseArgs(pairs []string) (Args, error) {
	args := Args{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid builder argument %q: expected key=value", pair)
		}
		if _, dup := args[key]; dup {
			return nil, fmt.Errorf("duplicate builder argument %q", key)
		}
		args[key] = value
	}
	return args, nil
}
