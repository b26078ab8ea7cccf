package shared

// Reason is the machine-readable code attached to every denied or
// ineligible decision. The web layer translates these to user-facing text;
// the engine never produces HTTP statuses or prose.
type Reason string

const (
	ReasonNotFound         Reason = "not_found"
	ReasonInsufficientRole Reason = "insufficient_role"
	ReasonRevoked          Reason = "explicitly_revoked"
	ReasonOutsideWindow    Reason = "outside_window"
	ReasonClosed           Reason = "closed"
	ReasonQuotaExceeded    Reason = "quota_exceeded"
	ReasonNotWhitelisted   Reason = "not_whitelisted"
	ReasonGroupMismatch    Reason = "group_mismatch"
	// ReasonPasswordRequired covers anonymous surveys gated by a password
	// that was missing or wrong.
	ReasonPasswordRequired Reason = "password_required"
	// ReasonMisconfigured covers principals whose role data cannot be
	// resolved; ambiguous state always denies.
	ReasonMisconfigured Reason = "misconfigured"
)
