package security

import "regexp"

// Severity indicates the risk level of a finding or alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Weight is the risk contribution of one item at this severity.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 40
	case SeverityHigh:
		return 25
	case SeverityMedium:
		return 10
	case SeverityLow:
		return 3
	default:
		return 5
	}
}

// Pattern is one secret detection rule.
type Pattern struct {
	Name       string
	Severity   Severity
	Regex      *regexp.Regexp
	MinEntropy float64
}

// BuiltinPatterns are well-known credential formats.
var BuiltinPatterns = []Pattern{
	{
		Name:     "aws_access_key_id",
		Severity: SeverityCritical,
		Regex:    regexp.MustCompile(`(?:^|[^A-Z0-9])((?:AKIA|ABIA|ACCA|ASIA)[A-Z0-9]{16})(?:[^A-Z0-9]|$)`),
	},
	{
		Name:     "github_pat",
		Severity: SeverityCritical,
		Regex:    regexp.MustCompile(`ghp_[A-Za-z0-9]{36,}`),
	},
	{
		Name:     "github_fine_grained",
		Severity: SeverityCritical,
		Regex:    regexp.MustCompile(`github_pat_[A-Za-z0-9]{22}_[A-Za-z0-9]{59}`),
	},
	{
		Name:     "github_app",
		Severity: SeverityCritical,
		Regex:    regexp.MustCompile(`(?:gho|ghu|ghs)_[A-Za-z0-9]{36,}`),
	},
	{
		Name:     "stripe_live_secret",
		Severity: SeverityCritical,
		Regex:    regexp.MustCompile(`[sr]k_live_[A-Za-z0-9]{24,}`),
	},
	{
		Name:     "slack_token",
		Severity: SeverityHigh,
		Regex:    regexp.MustCompile(`xox[bpas]-[0-9]{10,13}-[0-9A-Za-z-]{20,}`),
	},
	{
		Name:     "slack_webhook",
		Severity: SeverityMedium,
		Regex:    regexp.MustCompile(`https://hooks\.slack\.com/services/T[A-Z0-9]{8,}/B[A-Z0-9]{8,}/[A-Za-z0-9]{24}`),
	},
	{
		Name:     "private_key",
		Severity: SeverityCritical,
		Regex:    regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH |DSA |PGP )?PRIVATE KEY(?: BLOCK)?-----`),
	},
	{
		Name:     "openai_api_key",
		Severity: SeverityHigh,
		Regex:    regexp.MustCompile(`sk-(?:proj-)?[A-Za-z0-9_-]{32,}`),
	},
	{
		Name:       "generic_secret_assignment",
		Severity:   SeverityMedium,
		Regex:      regexp.MustCompile(`(?i)(?:api[_-]?key|secret|token|passw(?:or)?d)["']?\s*[:=]\s*["']([A-Za-z0-9/+_\-]{20,})["']`),
		MinEntropy: 3.5,
	},
}

// sensitivePaths are files that should never be committed.
var sensitivePaths = []struct {
	suffix   string
	severity Severity
}{
	{".env", SeverityHigh},
	{"id_rsa", SeverityCritical},
	{"id_ed25519", SeverityCritical},
	{".pem", SeverityHigh},
	{".p12", SeverityHigh},
	{".pfx", SeverityHigh},
	{".keystore", SeverityHigh},
	{"credentials.json", SeverityHigh},
	{".npmrc", SeverityMedium},
	{".pypirc", SeverityMedium},
}
