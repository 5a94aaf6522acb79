package ratelimit

import "time"

var (
	Strict  = Config{Window: time.Minute, MaxRequests: 10}
	Normal  = Config{Window: time.Minute, MaxRequests: 30}
	Lenient = Config{Window: time.Minute, MaxRequests: 100}
)

var presets = map[string]Config{
	"strict":  Strict,
	"normal":  Normal,
	"lenient": Lenient,
}

// Preset looks up a named configuration: strict, normal or lenient.
func Preset(name string) (Config, bool) {
	cfg, ok := presets[name]
	return cfg, ok
}
