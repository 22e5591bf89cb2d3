package access

// Target carries the tenancy attributes of the entity an operation touches.
// Empty fields are treated as unset.
type Target struct {
	CompanyID string
	ClientID  string
	DriverID  string
}

// DenyReason distinguishes why a check failed.
type DenyReason string

const (
	// ReasonNoProfile: the actor has no resolvable profile at all. That is
	// a configuration problem, not a normal authorization boundary.
	ReasonNoProfile DenyReason = "no_profile"
	// ReasonOutOfScope: the actor has a profile but the target's tenancy
	// attributes fall outside the resolved scope.
	ReasonOutOfScope DenyReason = "out_of_scope"
)

// Decision is the outcome of a guard check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// CheckAccess decides whether the scope covers the target. Rules apply in
// order: unrestricted scopes allow everything; a driver always reaches their
// own records even when the company link is stale; otherwise the target's
// company, then client, must intersect the scope sets.
func CheckAccess(scope Scope, target Target) Decision {
	if scope.Unrestricted {
		return Decision{Allowed: true}
	}
	if target.DriverID != "" && scope.OwnedDriverID != "" && target.DriverID == scope.OwnedDriverID {
		return Decision{Allowed: true}
	}
	if target.CompanyID != "" && scope.HasCompany(target.CompanyID) {
		return Decision{Allowed: true}
	}
	if target.ClientID != "" && scope.HasClient(target.ClientID) {
		return Decision{Allowed: true}
	}
	if scope.ProfileMissing {
		return Decision{Allowed: false, Reason: ReasonNoProfile}
	}
	return Decision{Allowed: false, Reason: ReasonOutOfScope}
}
