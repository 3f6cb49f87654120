// Package config loads and validates powderlab configuration.
//
// Configuration lives in a TOML file, resolved from an explicit path,
// ~/.config/powderlab/config.toml, or powderlab.toml in the working
// directory. Load applies repository defaults, expands paths, and
// validates the result so the rest of the program can trust every
// field.
package config
