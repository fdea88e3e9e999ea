// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "patent-scout/0.1"). Per prd010-aggregation R5.2.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// StrategyConfig holds settings for the query-strategy stage.
// Per prd009-strategy R2.1-R2.4.
type StrategyConfig struct {
	// MaxTerms caps the number of generated terms per job (default 120).
	MaxTerms int `json:"max_terms" yaml:"max_terms"`

	// TargetCountry is the jurisdiction searches are scoped to (default "BR").
	TargetCountry string `json:"target_country" yaml:"target_country"`

	// ApplicantHints are known originator companies added to the
	// applicant strategy on top of any discovered from registry data.
	ApplicantHints []string `json:"applicant_hints,omitempty" yaml:"applicant_hints,omitempty"`
}

// RegistryConfig holds settings for the patent registry source (EPO OPS).
// Per prd010-aggregation R3.1-R3.4.
type RegistryConfig struct {
	HTTPConfig `yaml:",inline"`

	// Key and Secret are the OAuth client credentials. Loaded from the
	// secrets directory, never from the config file.
	Key    string `json:"-" yaml:"-"`
	Secret string `json:"-" yaml:"-"`

	// Enabled controls whether the registry source is queried (default true).
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// PublicSearchConfig holds settings for the public patent search source.
type PublicSearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Enabled controls whether the public search source is queried (default true).
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// OfficeConfig holds settings for the authenticated national patent
// office source (INPI). Per prd011-session R1.1-R1.3.
type OfficeConfig struct {
	HTTPConfig `yaml:",inline"`

	// Username and Password are the portal login credentials. Loaded
	// from the secrets directory, never from the config file.
	Username string `json:"-" yaml:"-"`
	Password string `json:"-" yaml:"-"`

	// Enabled controls whether the office source is queried (default true).
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Mandatory, when set, fails the whole job if the office source
	// cannot authenticate. When unset the job degrades to partial.
	Mandatory bool `json:"mandatory" yaml:"mandatory"`
}

// SessionConfig holds settings for authenticated-session management.
// Per prd011-session R2.1-R2.4.
type SessionConfig struct {
	// MaxLoginAttempts is the number of login attempts before the
	// session manager gives up (default 3).
	MaxLoginAttempts int `json:"max_login_attempts" yaml:"max_login_attempts"`

	// LoginBackoff is the base delay between failed login attempts,
	// doubled per attempt (default 2s).
	LoginBackoff time.Duration `json:"login_backoff" yaml:"login_backoff"`

	// MinLoginInterval throttles re-logins so expiry loops cannot hammer
	// the portal (default 1s).
	MinLoginInterval time.Duration `json:"min_login_interval" yaml:"min_login_interval"`
}

// SchedulerConfig holds settings for batch query scheduling.
// Per prd012-scheduler R1.1-R1.4, R3.2.
type SchedulerConfig struct {
	// Workers is the concurrency limit for stateless sources (default 4).
	Workers int `json:"workers" yaml:"workers"`

	// BatchSize is the number of queries per batch against the stateful
	// office source (default 7).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// QueryDelay is the pause between consecutive queries within a batch
	// (default 3s).
	QueryDelay time.Duration `json:"query_delay" yaml:"query_delay"`

	// JobTimeout bounds the whole scheduling phase; on expiry the
	// results gathered so far are returned as partial (default 30m).
	JobTimeout time.Duration `json:"job_timeout" yaml:"job_timeout"`
}

// InferenceConfig holds settings for pending-filing inference.
// Per prd013-inference R1.1-R1.2.
type InferenceConfig struct {
	// WindowLowerMonths and WindowUpperMonths bound the elapsed time
	// since international filing inside which a national-phase entry is
	// predicted (defaults 6 and 18: the 30-month deadline minus a
	// typical 12-24 month publication lag).
	WindowLowerMonths int `json:"window_lower_months" yaml:"window_lower_months"`
	WindowUpperMonths int `json:"window_upper_months" yaml:"window_upper_months"`
}

// AuditConfig holds settings for reference-set comparison.
// Per prd014-audit R2.2-R2.3.
type AuditConfig struct {
	// ReferenceDir is the directory holding reference-set YAML files.
	ReferenceDir string `json:"reference_dir" yaml:"reference_dir"`

	// QualityLowBelow and QualityHighAbove are F1-score thresholds (in
	// percent) splitting low / medium / high (defaults 50 and 80).
	QualityLowBelow  float64 `json:"quality_low_below" yaml:"quality_low_below"`
	QualityHighAbove float64 `json:"quality_high_above" yaml:"quality_high_above"`
}

// TranslationConfig holds settings for the name-translation service.
type TranslationConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey authenticates against the translation API. Loaded from the
	// secrets directory.
	APIKey string `json:"-" yaml:"-"`

	// TargetLanguage is the language translations are requested in
	// (default "pt").
	TargetLanguage string `json:"target_language" yaml:"target_language"`
}

// ArchiveConfig holds settings for the job archive.
type ArchiveConfig struct {
	// Dir is the directory holding the archive database (default "archive/").
	Dir string `json:"dir" yaml:"dir"`
}

// ServeConfig holds settings for the HTTP API server.
type ServeConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Strategy     StrategyConfig     `json:"strategy" yaml:"strategy"`
	Registry     RegistryConfig     `json:"registry" yaml:"registry"`
	PublicSearch PublicSearchConfig `json:"public_search" yaml:"public_search"`
	Office       OfficeConfig       `json:"office" yaml:"office"`
	Session      SessionConfig      `json:"session" yaml:"session"`
	Scheduler    SchedulerConfig    `json:"scheduler" yaml:"scheduler"`
	Inference    InferenceConfig    `json:"inference" yaml:"inference"`
	Audit        AuditConfig        `json:"audit" yaml:"audit"`
	Translation  TranslationConfig  `json:"translation" yaml:"translation"`
	Archive      ArchiveConfig      `json:"archive" yaml:"archive"`
	Serve        ServeConfig        `json:"serve" yaml:"serve"`
}
