package config

import "candlekeep/pkg/confkit"

// DefaultPath is etc/candlekeep.yaml under the project root.
func DefaultPath() string {
	return confkit.MustProjectPath("etc/candlekeep.yaml")
}
