package config

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Load reads the TOML configuration at path (or discovers
// testforge.toml in the current directory when path is empty) and
// decodes it into a Config, applying the flexible
// count-or-object decode hooks for retries, slow-timeout, and
// leak-timeout.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("testforge")
	}

	v.SetEnvPrefix("TESTFORGE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading configuration: %w", err)
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		retryDecodeHook,
		slowTimeoutDecodeHook,
		leakTimeoutDecodeHook,
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("config: decoding configuration: %w", err)
	}
	return &cfg, nil
}

// retryDecodeHook lets "retries = 3" and
// "retries = { count = 3, backoff = \"fixed\" }" both decode into
// CountOrRetry.
func retryDecodeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(CountOrRetry{}) {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Int, reflect.Int64, reflect.Float64:
		n, err := toInt(data)
		if err != nil {
			return nil, err
		}
		return CountOrRetry{Count: n}, nil
	case reflect.Map:
		return data, nil
	default:
		return data, nil
	}
}

// slowTimeoutDecodeHook lets "slow-timeout = \"60s\"" and
// "slow-timeout = { period = \"60s\", terminate-after = 3 }" both
// decode into CountOrSlowTimeout.
func slowTimeoutDecodeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(CountOrSlowTimeout{}) {
		return data, nil
	}
	if from.Kind() == reflect.String {
		d, err := time.ParseDuration(data.(string))
		if err != nil {
			return nil, fmt.Errorf("config: invalid slow-timeout duration: %w", err)
		}
		return CountOrSlowTimeout{Period: d}, nil
	}
	return data, nil
}

// leakTimeoutDecodeHook mirrors slowTimeoutDecodeHook for leak-timeout.
func leakTimeoutDecodeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(CountOrLeakTimeout{}) {
		return data, nil
	}
	if from.Kind() == reflect.String {
		d, err := time.ParseDuration(data.(string))
		if err != nil {
			return nil, fmt.Errorf("config: invalid leak-timeout duration: %w", err)
		}
		return CountOrLeakTimeout{Period: d}, nil
	}
	return data, nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("config: cannot convert %T to int", v)
	}
}
