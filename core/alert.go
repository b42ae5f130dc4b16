package core

// Alert is one observed cross-application network event.
type Alert struct {
	AlertName         string `json:"alert_name" yaml:"alert_name" msgpack:"alert_name"`
	Message           string `json:"message" yaml:"message" msgpack:"message"`
	ApplicationFrom   string `json:"application_from" yaml:"application_from" msgpack:"application_from"`
	DestinationDomain string `json:"destination_domain" yaml:"destination_domain" msgpack:"destination_domain"`
	Type              string `json:"type" yaml:"type" msgpack:"type"`
	Severity          int    `json:"severity" yaml:"severity" msgpack:"severity"`
	Timestamp         string `json:"timestamp" yaml:"timestamp" msgpack:"timestamp"`
}

// Alert column names. These are the only identifiers a filter may sort by.
const (
	FieldAlertName         = "alert_name"
	FieldMessage           = "message"
	FieldApplicationFrom   = "application_from"
	FieldDestinationDomain = "destination_domain"
	FieldType              = "type"
	FieldSeverity          = "severity"
	FieldTimestamp         = "timestamp"
)

// AlertFields lists the alert columns in table order.
var AlertFields = []string{
	FieldAlertName,
	FieldMessage,
	FieldApplicationFrom,
	FieldDestinationDomain,
	FieldType,
	FieldSeverity,
	FieldTimestamp,
}

var alertFieldSet = func() map[string]bool {
	m := make(map[string]bool, len(AlertFields))
	for _, f := range AlertFields {
		m[f] = true
	}
	return m
}()

// IsAlertField reports whether name is one of the alert columns.
func IsAlertField(name string) bool {
	return alertFieldSet[name]
}

const (
	// MinSeverity is the lowest severity an alert can carry
	MinSeverity = 1
	// MaxSeverity is the highest (most severe) severity
	MaxSeverity = 5
	// MaxAlerts caps the page size when a request does not specify one
	MaxAlerts = 100
	// AlertsTable is the relation holding alert rows
	AlertsTable = "alerts"
)

// ValidSeverity reports whether s is in [MinSeverity, MaxSeverity].
func ValidSeverity(s int) bool {
	return s >= MinSeverity && s <= MaxSeverity
}
