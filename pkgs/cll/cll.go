// Package cll provides small helpers for building CLI applications with
// urfave/cli/v3.
package cll

import "github.com/urfave/cli/v3"

// EnvWithPrefix returns a function that creates environment variable
// sources with a consistent prefix, namespacing all environment variables
// for an application.
//
// Example:
//
//	env := cll.EnvWithPrefix("MYAPP_")
//	flag := &cli.StringFlag{
//		Name:    "config",
//		Sources: env("CONFIG", "CONFIG_PATH"), // reads MYAPP_CONFIG, MYAPP_CONFIG_PATH
//	}
func EnvWithPrefix(prefix string) func(strs ...string) cli.ValueSourceChain {
	return func(strs ...string) cli.ValueSourceChain {
		withPrefix := make([]string, len(strs))

		for i, str := range strs {
			withPrefix[i] = prefix + str
		}

		return cli.EnvVars(withPrefix...)
	}
}
