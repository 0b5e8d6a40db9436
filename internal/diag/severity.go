package diag

// Severity orders diagnostics by weight. The compiler itself is fail-fast
// and only ever produces errors; the lower levels exist for tooling that
// aggregates diagnostics across files, like flint check.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

var severityNames = [...]string{"INFO", "WARNING", "ERROR"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "UNKNOWN"
}
