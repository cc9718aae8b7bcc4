package enums

// PaymentStatus tracks the payment side of an order.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool {
	return p == PaymentStatusPending || p == PaymentStatusProcessing || p == PaymentStatusFailed || p.IsTerminal()
}

// IsTerminal reports whether provider callbacks can no longer move the status.
// Failed is not terminal: a declined card intent can be confirmed again.
func (p PaymentStatus) IsTerminal() bool {
	return p == PaymentStatusCompleted || p == PaymentStatusRefunded
}
