package access

import "fleetflow/identity"

// Action enumerates the mutating operations gated by the write policy.
type Action string

const (
	ActionSubmitRide     Action = "submit_ride"
	ActionApproveRide    Action = "approve_ride"
	ActionRejectRide     Action = "reject_ride"
	ActionRaiseDispute   Action = "raise_dispute"
	ActionComment        Action = "comment"
	ActionResolveDispute Action = "resolve_dispute"
	ActionManageTenancy  Action = "manage_tenancy"
)

// WritePolicy is the role-to-action permission grid. Read scope is uniform
// across the contact-person roles; write permissions are configured here
// separately so an accountant can see everything an admin sees without being
// able to approve anything.
type WritePolicy map[identity.Role]map[Action]bool

// Allows reports whether the role may perform the action. Unknown roles and
// actions default to false.
func (p WritePolicy) Allows(role identity.Role, action Action) bool {
	grid, ok := p[role]
	if !ok {
		return false
	}
	return grid[action]
}

// DefaultWritePolicy returns the stock permission grid: global and customer
// admins manage the ride lifecycle and the tenancy graph (the guard still
// limits customer admins to their own companies), accountants/employers/
// customers are read-only apart from dispute comments, drivers submit rides
// and raise disputes on them.
func DefaultWritePolicy() WritePolicy {
	return WritePolicy{
		identity.RoleGlobalAdmin: {
			ActionSubmitRide:     true,
			ActionApproveRide:    true,
			ActionRejectRide:     true,
			ActionRaiseDispute:   true,
			ActionComment:        true,
			ActionResolveDispute: true,
			ActionManageTenancy:  true,
		},
		identity.RoleCustomerAdmin: {
			ActionApproveRide:    true,
			ActionRejectRide:     true,
			ActionRaiseDispute:   true,
			ActionComment:        true,
			ActionResolveDispute: true,
			ActionManageTenancy:  true,
		},
		identity.RoleCustomerAccountant: {
			ActionComment: true,
		},
		identity.RoleEmployer: {
			ActionComment: true,
		},
		identity.RoleCustomer: {
			ActionComment: true,
		},
		identity.RoleDriver: {
			ActionSubmitRide:   true,
			ActionRaiseDispute: true,
			ActionComment:      true,
		},
	}
}
