/*
Package config loads and validates TeamCache Manager configuration.

Configuration comes from a YAML file merged over built-in defaults; the CLI
layers flag overrides on top for the common knobs. Millisecond-suffixed keys
match the deployment wire names; code reads durations through the accessor
methods.

	cfg, err := config.Load("/etc/tc-manager/config.yaml")
	if err != nil { ... }
	if err := cfg.Validate(); err != nil { ... }

	interval := cfg.PollInterval()

AllowedRoots defaults to [RootPath] when unset; every path-taking engine
operation checks inputs against that list.
*/
package config
