// Package enum holds the string constants mirrored by CHECK constraints in
// the schema. Order status and channel are closed types in internal/status;
// everything else lives here.
package enum

const (
	ShiftStatusActive = "ACTIVE"
	ShiftStatusClosed = "CLOSED"
)

const (
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
)

const (
	PaymentMethodCash  = "CASH"
	PaymentMethodGCash = "GCASH"
)
