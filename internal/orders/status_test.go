package orders

import "testing"

var allStatuses = []Status{
	StatusPending, StatusProcessing, StatusShipped,
	StatusDelivered, StatusCancelled, StatusRefunded,
}

func TestCanTransition_Table(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:    {StatusProcessing, StatusCancelled},
		StatusProcessing: {StatusShipped, StatusCancelled},
		StatusShipped:    {StatusDelivered},
		StatusDelivered:  {StatusRefunded},
		StatusCancelled:  {},
		StatusRefunded:   {},
	}

	for _, from := range allStatuses {
		ok := map[Status]bool{}
		for _, to := range allowed[from] {
			ok[to] = true
		}
		for _, to := range allStatuses {
			got := CanTransition(from, to)
			if got != ok[to] {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, ok[to])
			}
		}
	}
}

func TestCanTransition_UnknownStatus(t *testing.T) {
	if CanTransition("BOGUS", StatusPending) {
		t.Error("unknown from-status must not transition")
	}
	if CanTransition(StatusPending, "BOGUS") {
		t.Error("unknown to-status must not be reachable")
	}
}

func TestCanCancel(t *testing.T) {
	want := map[Status]bool{
		StatusPending:    true,
		StatusProcessing: true,
		StatusShipped:    false,
		StatusDelivered:  false,
		StatusCancelled:  false,
		StatusRefunded:   false,
	}
	for s, w := range want {
		if got := CanCancel(s); got != w {
			t.Errorf("CanCancel(%s) = %v, want %v", s, got, w)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range allStatuses {
		want := s == StatusCancelled || s == StatusRefunded
		if got := IsTerminal(s); got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", s, got, want)
		}
	}
	if IsTerminal("BOGUS") {
		t.Error("unknown status must not be terminal")
	}
}
