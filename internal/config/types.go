// Package config loads the TOML run configuration: profiles, their
// per-test overrides, test groups, and setup scripts, using viper for
// file discovery/environment overlay and go-toml/v2 as the underlying
// TOML codec.
package config

import "time"

// Config is the fully decoded configuration file.
type Config struct {
	Profiles map[string]Profile `mapstructure:"profile"`
	Groups   map[string]Group   `mapstructure:"test-groups"`
	Scripts  ScriptsConfig      `mapstructure:"scripts"`
}

// ScriptsConfig groups the script kinds a run configuration may
// declare: setup scripts run once before any test starts; pre-timeout
// scripts run per attempt when its terminate deadline fires.
type ScriptsConfig struct {
	Setup      map[string]Script           `mapstructure:"setup"`
	PreTimeout map[string]PreTimeoutScript `mapstructure:"pre-timeout"`
}

// Profile is one named execution profile: base settings plus an
// ordered list of per-test overrides applied on top of it.
type Profile struct {
	Retries           CountOrRetry       `mapstructure:"retries"`
	SlowTimeout       CountOrSlowTimeout `mapstructure:"slow-timeout"`
	LeakTimeout       CountOrLeakTimeout `mapstructure:"leak-timeout"`
	Threads           string             `mapstructure:"threads-required"`
	Priority          int                `mapstructure:"priority"`
	TestGroup         string             `mapstructure:"test-group"`
	FailFast          bool               `mapstructure:"fail-fast"`
	FinalStatusLevel  string             `mapstructure:"final-status-level"`
	Overrides         []Override         `mapstructure:"overrides"`
	SetupScripts      []string           `mapstructure:"setup-scripts"`
	PreTimeoutScripts []string           `mapstructure:"pre-timeout-scripts"`
}

// Override applies its settings to every test whose name matches
// Filter (an expression string passed through unevaluated here;
// Resolver evaluates it with the FilterFunc it was built with).
type Override struct {
	Filter      string             `mapstructure:"filter"`
	Platform    string             `mapstructure:"platform"`
	Retries     CountOrRetry       `mapstructure:"retries"`
	SlowTimeout CountOrSlowTimeout `mapstructure:"slow-timeout"`
	LeakTimeout CountOrLeakTimeout `mapstructure:"leak-timeout"`
	Threads     string             `mapstructure:"threads-required"`
	Priority    *int               `mapstructure:"priority"`
	TestGroup   string             `mapstructure:"test-group"`
}

// Group is a user-defined concurrency domain.
type Group struct {
	MaxThreads string `mapstructure:"max-threads"`
}

// Script is one setup script definition.
type Script struct {
	Command []string `mapstructure:"command"`
	CWD     string   `mapstructure:"cwd"`
}

// PreTimeoutScript is one pre-timeout script definition: it runs when
// an attempt's terminate deadline fires, working directory defaulting
// to the test's own CWD when unset. Filter is an opaque expression
// matched by substring against the test key (BinaryID::TestName), an
// empty Filter matching every test.
type PreTimeoutScript struct {
	Command []string `mapstructure:"command"`
	CWD     string   `mapstructure:"cwd"`
	Filter  string   `mapstructure:"filter"`
}

// CountOrRetry decodes either a bare integer ("retries = 3") or a
// table ("retries = { count = 3, backoff = \"exponential\" }").
type CountOrRetry struct {
	Count   int
	Backoff string
	Delay   time.Duration
	Jitter  bool
}

// CountOrSlowTimeout decodes either a bare duration string or a table
// with period/terminate-after.
type CountOrSlowTimeout struct {
	Period         time.Duration
	TerminateAfter int
}

// CountOrLeakTimeout decodes either a bare duration string or a table
// with period/result.
type CountOrLeakTimeout struct {
	Period time.Duration
	Result string
}
