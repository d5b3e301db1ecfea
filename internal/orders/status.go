package orders

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
	StatusRefunded   Status = "REFUNDED"
)

// validNext is the authoritative transition table. Cancellation goes through
// it too: an order is cancellable exactly when validNext allows CANCELLED.
var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {StatusRefunded: true},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func CanCancel(s Status) bool {
	return CanTransition(s, StatusCancelled)
}

func ValidStatus(s Status) bool {
	_, ok := validNext[s]
	return ok
}

func IsTerminal(s Status) bool {
	return ValidStatus(s) && len(validNext[s]) == 0
}
