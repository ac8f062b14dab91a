package core

// EnvPrefix namespaces every environment variable read by the CLI.
const EnvPrefix = "HARDGEN_"

// Flags holds the global CLI flag values for a single generation run.
type Flags struct {
	Standard   string
	ConfigFile string
	OutputFile string
	Platform   string
}
