package types

import "time"

// Leg is one train segment of an Itinerary.
//
// Invariants: LegNumber is 1-based and contiguous within an Itinerary;
// ToStation of leg k equals FromStation of leg k+1; delay fields are
// always finite minutes, never absent — a missing actual time implies a
// delay of zero, computed at parse time in internal/upstream rather than
// carried as a nil-able field here.
type Leg struct {
	LegNumber             int          `json:"leg_number"`
	TrainIdentity         string       `json:"train_identity"`
	FromStation           string       `json:"from_station"`
	ToStation             string       `json:"to_station"`
	ScheduledDeparture    time.Time    `json:"scheduled_departure"`
	ActualDeparture       OptionalTime `json:"actual_departure"`
	ScheduledArrival      time.Time    `json:"scheduled_arrival"`
	ActualArrival         OptionalTime `json:"actual_arrival"`
	DepartureDelayMinutes int          `json:"departure_delay_minutes"`
	ArrivalDelayMinutes   int          `json:"arrival_delay_minutes"`
	TravelTimeMinutes     int          `json:"travel_time_minutes"`
	Services              []string     `json:"services,omitempty"`
}

// Itinerary is one proposed journey within an Observation.
type Itinerary struct {
	TrainName              string       `json:"train_name"`
	ScheduledDeparture     time.Time    `json:"scheduled_departure"`
	ScheduledArrival       time.Time    `json:"scheduled_arrival"`
	ActualDeparture        OptionalTime `json:"actual_departure"`
	ActualArrival          OptionalTime `json:"actual_arrival"`
	TravelTimeMinutes      int          `json:"travel_time_minutes"`
	OverallDelayMinutes    int          `json:"overall_delay_minutes"`
	DepartureDelayMinutes  int          `json:"departure_delay_minutes"`
	ArrivalDelayMinutes    int          `json:"arrival_delay_minutes"`
	IsDelayed              bool         `json:"is_delayed"`
	IsSignificantlyDelayed bool         `json:"is_significantly_delayed"`
	TransfersCount         int          `json:"transfers_count"`
	PriceMinorUnits        int          `json:"price_minor_units"`
	Legs                   []Leg        `json:"legs"`
	IntermediateStations   []string     `json:"intermediate_stations,omitempty"`
}

// Observation is one harvest result for one StationPair at one wall-clock
// instant. Immutable once written to the object store.
type Observation struct {
	Pair        StationPair `json:"pair"`
	CapturedAt  time.Time   `json:"captured_at"`
	TravelDate  string      `json:"travel_date"` // YYYY-MM-DD
	Success     bool        `json:"success"`
	Itineraries []Itinerary `json:"itineraries,omitempty"`
}

// PositiveLegDelays returns every strictly-positive departure/arrival delay
// (in minutes) across every Itinerary of the Observation. Used by the Delay
// Joiner to build a PairDaySummary.
func (o Observation) PositiveLegDelays() []int {
	var out []int
	for _, it := range o.Itineraries {
		for _, leg := range it.Legs {
			if leg.DepartureDelayMinutes > 0 {
				out = append(out, leg.DepartureDelayMinutes)
			}
			if leg.ArrivalDelayMinutes > 0 {
				out = append(out, leg.ArrivalDelayMinutes)
			}
		}
	}
	return out
}
