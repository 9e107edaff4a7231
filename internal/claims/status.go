package claims

// Workflow statuses in fixed display order. Any status may transition to any
// other; the portal layer warns on transitions out of Closed but does not
// reject them.
const (
	StatusIntake       = "Intake"
	StatusVerification = "Verification"
	StatusCoding       = "Coding"
	StatusBilled       = "Billed/Submitted"
	StatusRejected     = "Rejected"
	StatusDenied       = "Denied"
	StatusFollowUp     = "A/R Follow-Up"
	StatusAppeals      = "Appeals"
	StatusPaid         = "Paid"
	StatusClosed       = "Closed"
)

var statusOrder = []string{
	StatusIntake,
	StatusVerification,
	StatusCoding,
	StatusBilled,
	StatusRejected,
	StatusDenied,
	StatusFollowUp,
	StatusAppeals,
	StatusPaid,
	StatusClosed,
}

// Statuses returns the fixed enum in display order.
func Statuses() []string {
	out := make([]string, len(statusOrder))
	copy(out, statusOrder)
	return out
}

// ValidStatus reports whether s is a canonical status.
func ValidStatus(s string) bool {
	for _, known := range statusOrder {
		if s == known {
			return true
		}
	}
	return false
}

// legacyStatuses maps spellings seen in imported books to the canonical
// enum. Unknown spellings are left untouched by NormalizeStatuses.
var legacyStatuses = map[string]string{
	"New":           StatusIntake,
	"Intake/New":    StatusIntake,
	"Billed":        StatusBilled,
	"Submitted":     StatusBilled,
	"AR Follow-Up":  StatusFollowUp,
	"AR Follow Up":  StatusFollowUp,
	"A/R Follow Up": StatusFollowUp,
	"Follow-Up":     StatusFollowUp,
	"Appeal":        StatusAppeals,
	"Denial":        StatusDenied,
	"Closed - Paid": StatusClosed,
	"Closed-Paid":   StatusClosed,
}
