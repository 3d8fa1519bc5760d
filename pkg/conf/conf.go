package conf

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Option interface {
	apply(v *viper.Viper)
}

type envPrefix struct {
	prefix string
}

func (p *envPrefix) apply(v *viper.Viper) {
	v.SetEnvPrefix(p.prefix)
}

func EnvPrefix(prefix string) Option {
	return &envPrefix{prefix}
}

type configFile struct {
	path string
}

func (f *configFile) apply(v *viper.Viper) {
	if len(f.path) > 0 {
		v.SetConfigFile(f.path)
	}
}

// File points the loader at an explicit config file. An empty path
// means environment-only configuration.
func File(path string) Option {
	return &configFile{path}
}

// https://github.com/spf13/viper/issues/188#issuecomment-399884438
func bindEnvs(v *viper.Viper, iface interface{}, parts ...string) {
	ifv := reflect.ValueOf(iface)
	ift := reflect.TypeOf(iface)

	if ifv.Kind() == reflect.Ptr {
		bindEnvs(v, ifv.Elem().Interface(), parts...)
		return
	}

	for i := 0; i < ift.NumField(); i++ {
		fv := ifv.Field(i)
		ft := ift.Field(i)
		name, ok := ft.Tag.Lookup("mapstructure")
		if !ok {
			name = ft.Name
		}
		if fv.Kind() == reflect.Struct {
			bindEnvs(v, fv.Interface(), append(parts, name)...)
		} else {
			err := v.BindEnv(strings.Join(append(parts, name), "."))
			if err != nil {
				panic(err)
			}
		}
	}
}

func ParseConfig(config interface{}, options ...Option) error {
	v := viper.New()
	for _, option := range options {
		option.apply(v)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if len(v.ConfigFileUsed()) > 0 {
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrap(err, "Failed to load config")
		}
	}

	bindEnvs(v, config)

	if err := v.Unmarshal(config); err != nil {
		return errors.Wrap(err, "Failed to unmarshal config")
	}

	return nil
}
