package config

import (
	"strings"

	"github.com/spf13/viper"
)

// keys lists every setting so ROPETPL_ variables reach viper.Unmarshal,
// which only sees environment values for keys it already knows.
var keys = []string{
	"template.extensions",
	"template.scan_paths",
	"template.exclude_patterns",
	"template.initial_capacity",
	"render.missing",
	"render.escape",
	"render.markdown",
	"render.output",
	"data.files",
	"watch.enabled",
	"watch.debounce",
	"log.level",
	"log.format",
	"log.dir",
}

// BindEnv enables ROPETPL_ overrides on the global viper instance:
// render.missing is read from ROPETPL_RENDER_MISSING and so on.
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range keys {
		_ = viper.BindEnv(key)
	}
}

// Keys returns the configuration keys ropetpl understands.
func Keys() []string {
	return append([]string(nil), keys...)
}
