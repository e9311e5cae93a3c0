// Package flagx lets several independent flag sets share os.Args: each one
// picks out its own flags and ignores the rest.
package flagx

import (
	"flag"
	"io"
	"os"
	"strings"
)

// Set names the flags one component owns. Names may be given with one or
// two leading dashes; "-config" and "--config" are the same flag.
type Set struct {
	// Valued flags take a value, either "-d dsn" or "-d=dsn".
	Valued []string
	// Bool flags never consume the following argument.
	Bool []string
}

// Filter returns the arguments belonging to s, in their original order.
// Parsing stops at a bare "--". A valued flag followed by something that
// looks like another flag is kept without a value.
func (s Set) Filter(args []string) []string {
	valued := names(s.Valued)
	boolean := names(s.Bool)

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		name, _, hasValue := strings.Cut(arg, "=")
		name = strings.TrimLeft(name, "-")

		if _, ok := boolean[name]; ok {
			out = append(out, arg)
			continue
		}
		if _, ok := valued[name]; !ok {
			continue
		}

		out = append(out, arg)
		if !hasValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, args[i+1])
			i++
		}
	}

	return out
}

// FilterArgs keeps only the allowedFlags (all treated as valued) from args.
func FilterArgs(args []string, allowedFlags []string) []string {
	return Set{Valued: allowedFlags}.Filter(args)
}

func names(flags []string) map[string]struct{} {
	m := make(map[string]struct{}, len(flags))
	for _, f := range flags {
		m[strings.TrimLeft(f, "-")] = struct{}{}
	}
	return m
}

// ConfigEnvVar is consulted by JsonConfigFlags when no flag names a file.
const ConfigEnvVar = "PROFOLIO_CONFIG"

// JsonConfigFlags returns the config file path given by -c/-config, or the
// value of ConfigEnvVar, or "".
func JsonConfigFlags() string {
	var config string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(Set{Valued: []string{"c", "config"}}.Filter(os.Args[1:]))

	if config == "" {
		config = strings.TrimSpace(os.Getenv(ConfigEnvVar))
	}

	return config
}
