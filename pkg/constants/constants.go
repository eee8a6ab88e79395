// Package constants provides shared constants for the loan-support application.
package constants

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// FOIRDecimalPlaces is the precision FOIR is reported with
	FOIRDecimalPlaces = 1
)

// Affordability ceilings, expressed as percent of gross monthly income. The
// derived-EMI ceiling and the eligible-amount ceiling are distinct.
const (
	// DerivedEMICeilingPercent caps the EMI derived when no loan amount is given
	DerivedEMICeilingPercent = 40.0

	// EligibleAmountCeilingPercent caps the EMI used to size the eligible principal
	EligibleAmountCeilingPercent = 43.0
)

// Request limits enforced at the HTTP boundary
const (
	// MaxAnnualRatePercent is the highest accepted annual interest rate
	MaxAnnualRatePercent = 1000.0

	// MaxTenureMonths is the longest accepted loan term (50 years)
	MaxTenureMonths = 600

	// MinTenureMonths is the shortest accepted loan term
	MinTenureMonths = 1
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatJSON is the raw JSON output format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix prefixes environment overrides of server configuration keys
	EnvPrefix = "LOAN_SUPPORT"

	// SettingsDirName is the per-user directory holding client settings
	SettingsDirName = "loan-support"

	// SettingsFileName is the client settings file name
	SettingsFileName = "settings.yaml"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":5000"

	// DefaultMaxRequestSizeBytes is the default maximum JSON request body size (64 KB)
	DefaultMaxRequestSizeBytes int64 = 64 * 1024

	// DefaultDocumentsPath is the ingestion path used when a request names none
	DefaultDocumentsPath = "app/data/documents"

	// DefaultTopK is the number of passages requested when a question omits top_k
	DefaultTopK = 5

	// DefaultHistoryLimit is the number of audit records returned by default
	DefaultHistoryLimit = 20

	// MaxHistoryLimit bounds the audit records returned in one response
	MaxHistoryLimit = 100

	// DefaultCacheMaxEntries bounds the in-memory result cache
	DefaultCacheMaxEntries = 10000
)

// API surface
const (
	// APIPrefix is prepended to every versioned endpoint
	APIPrefix = "/api/v1"

	// DefaultAPIBase is the API base URL used when none is configured
	DefaultAPIBase = "http://localhost:5000"

	// DocsRedirectURL is where the docs endpoint sends browsers
	DocsRedirectURL = "https://swagger.io/specification/"
)
