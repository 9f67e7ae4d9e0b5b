// Package flagx contains helpers for layered flag parsing, where several
// config packages each parse only the flags they own out of os.Args.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns only the arguments that belong to the allowed flags,
// keeping each flag's value when it is supplied as a separate argument
// ("-d dsn") or inline ("-d=dsn"). Unknown flags and their values are
// dropped, so a FlagSet parsing the result never sees flags owned by
// another component.
func FilterArgs(args []string, allowed []string) []string {
	set := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		set[name] = struct{}{}
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := set[name]; ok {
				out = append(out, arg)
			}
			continue
		}

		if _, ok := set[arg]; ok {
			out = append(out, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				out = append(out, args[i+1])
				i++
			}
		}
	}

	return out
}

// ConfigFilePath extracts the JSON config file path given via -c or -config,
// ignoring all other arguments. Returns "" when neither flag is present.
func ConfigFilePath() string {
	var path string

	fs := flag.NewFlagSet("configfile", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to JSON config file")
	fs.StringVar(&path, "c", "", "path to JSON config file (short)")
	_ = fs.Parse(FilterArgs(os.Args[1:], []string{"-c", "-config"}))

	return path
}
