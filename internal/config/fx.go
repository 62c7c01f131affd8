package config

import "go.uber.org/fx"

// Module provides application configuration.
var Module = fx.Provide(Load)
