package main

import (
	"strings"

	"github.com/spf13/pflag"
)

// SplitArgs separates the arguments crank's own flag set understands from
// those forwarded verbatim to the agent invocation. Unknown flags, their
// values, stray positionals, and everything after a bare "--" all pass
// through in their original order.
func SplitArgs(flags *pflag.FlagSet, args []string) (own, passthrough []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			passthrough = append(passthrough, args[i+1:]...)
			return own, passthrough
		}

		f, inline := lookupFlag(flags, arg)
		if f == nil {
			passthrough = append(passthrough, arg)
			continue
		}

		own = append(own, arg)
		// A known non-bool flag without an inline value consumes the next
		// argument as its value.
		if f.Value.Type() != "bool" && !inline && i+1 < len(args) {
			i++
			own = append(own, args[i])
		}
	}
	return own, passthrough
}

// lookupFlag resolves arg to a flag in the set, nil when it is not a flag
// or not one of ours. inline reports whether the argument already carries
// its value ("--prompt=x", "-n3").
func lookupFlag(flags *pflag.FlagSet, arg string) (f *pflag.Flag, inline bool) {
	switch {
	case strings.HasPrefix(arg, "--"):
		name := strings.TrimPrefix(arg, "--")
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			name = name[:eq]
			inline = true
		}
		return flags.Lookup(name), inline
	case strings.HasPrefix(arg, "-") && len(arg) > 1:
		return flags.ShorthandLookup(arg[1:2]), len(arg) > 2
	}
	return nil, false
}
