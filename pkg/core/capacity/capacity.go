package capacity

import "fmt"

// DefaultSeatsPerDriver is the number of seats each driver brings, driver included
const DefaultSeatsPerDriver = 5

// Input holds the numbers needed to size a trip roster
type Input struct {
	DriverCount     int
	SeatsPerDriver  int // 0 means DefaultSeatsPerDriver
	AlreadyRostered int
	WaitlistSize    int

	// RosterLimit overrides DriverCount*SeatsPerDriver when > 0
	RosterLimit int
}

// Capacity is derived from Input and never stored
type Capacity struct {
	DriverCount          int
	SeatsPerDriver       int
	TotalRosterCapacity  int
	AlreadyRostered      int
	RemainingRosterSlots int
	WaitlistSize         int

	// Overbooked is set when more people are already rostered than the trip can seat
	Overbooked bool
}

// Compute derives the roster and waitlist capacity for a trip
func Compute(in Input) (Capacity, error) {
	if in.DriverCount < 0 {
		return Capacity{}, fmt.Errorf("driver count must not be negative, got %d", in.DriverCount)
	}
	if in.SeatsPerDriver < 0 {
		return Capacity{}, fmt.Errorf("seats per driver must not be negative, got %d", in.SeatsPerDriver)
	}
	if in.AlreadyRostered < 0 {
		return Capacity{}, fmt.Errorf("already rostered count must not be negative, got %d", in.AlreadyRostered)
	}
	if in.WaitlistSize < 0 {
		return Capacity{}, fmt.Errorf("waitlist size must not be negative, got %d", in.WaitlistSize)
	}
	if in.RosterLimit < 0 {
		return Capacity{}, fmt.Errorf("roster limit must not be negative, got %d", in.RosterLimit)
	}

	seats := in.SeatsPerDriver
	if seats == 0 {
		seats = DefaultSeatsPerDriver
	}

	total := in.DriverCount * seats
	if in.RosterLimit > 0 {
		total = in.RosterLimit
	}

	remaining := total - in.AlreadyRostered
	overbooked := remaining < 0
	if overbooked {
		remaining = 0
	}

	return Capacity{
		DriverCount:          in.DriverCount,
		SeatsPerDriver:       seats,
		TotalRosterCapacity:  total,
		AlreadyRostered:      in.AlreadyRostered,
		RemainingRosterSlots: remaining,
		WaitlistSize:         in.WaitlistSize,
		Overbooked:           overbooked,
	}, nil
}

// MaxPlaced is the number of candidates that can be rostered or waitlisted
func (c Capacity) MaxPlaced() int {
	return c.RemainingRosterSlots + c.WaitlistSize
}
