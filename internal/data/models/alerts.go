package models

// SecurityAlert is one open Dependabot alert.
type SecurityAlert struct {
	Number   int    `json:"number"`
	Severity string `json:"severity"`
	Package  string `json:"package,omitempty"`
	Summary  string `json:"summary,omitempty"`
	HTMLURL  string `json:"html_url,omitempty"`
}

// SecurityAlerts reports open alerts. Available is false when the token
// cannot read alerts or alerts are disabled for the repository.
type SecurityAlerts struct {
	Available bool            `json:"available"`
	Reason    string          `json:"reason,omitempty"`
	Alerts    []SecurityAlert `json:"alerts,omitempty"`
}
