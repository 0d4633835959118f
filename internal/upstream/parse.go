package upstream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mav-dashboard/harvester/internal/types"
)

// significantDelayThresholdMinutes mirrors the original scraper's
// is_significantly_delayed cutoff (strictly more than 5 minutes).
const significantDelayThresholdMinutes = 5

// PayloadError indicates the upstream response could not be parsed, or
// lacked the top-level "route" field entirely. Never retried; logged with
// a bounded excerpt by the caller.
type PayloadError struct {
	Excerpt string
	Err     error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("upstream: payload error: %v (excerpt: %q)", e.Err, e.Excerpt)
}
func (e *PayloadError) Unwrap() error { return e.Err }

const excerptLen = 200

func excerpt(body []byte) string {
	if len(body) > excerptLen {
		return string(body[:excerptLen])
	}
	return string(body)
}

// ParseItineraries decodes a raw offer-response body into the domain
// Itinerary slice. A route array that is present-but-empty is a successful
// Observation with zero itineraries, not an error; only a body that
// doesn't decode, or omits "route" outright, is a PayloadError.
func ParseItineraries(body []byte) ([]types.Itinerary, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &PayloadError{Excerpt: excerpt(body), Err: err}
	}
	routeRaw, ok := raw["route"]
	if !ok {
		return nil, &PayloadError{Excerpt: excerpt(body), Err: fmt.Errorf("missing top-level \"route\" field")}
	}

	var routes []rawRoute
	if err := json.Unmarshal(routeRaw, &routes); err != nil {
		return nil, &PayloadError{Excerpt: excerpt(body), Err: err}
	}

	itineraries := make([]types.Itinerary, 0, len(routes))
	for _, r := range routes {
		itineraries = append(itineraries, convertRoute(r))
	}
	return itineraries, nil
}

func convertRoute(r rawRoute) types.Itinerary {
	schedDep := parseSentinelAware(r.Departure.Time)
	schedArr := parseSentinelAware(r.Arrival.Time)
	actualDep := parseOptional(r.Departure.TimeFact)
	actualArr := parseOptional(r.Arrival.TimeFact)

	depDelay := minutesBetween(schedDep, actualDep)
	arrDelay := minutesBetween(schedArr, actualArr)

	overall := r.DelayMin
	if depDelay > overall {
		overall = depDelay
	}
	if arrDelay > overall {
		overall = arrDelay
	}

	legs := convertLegs(r.Details.Routes)

	trainName := r.Details.TrainFullName
	if trainName == "" {
		trainName = "Unknown"
	}

	return types.Itinerary{
		TrainName:              trainName,
		ScheduledDeparture:     schedDep,
		ScheduledArrival:       schedArr,
		ActualDeparture:        actualDep,
		ActualArrival:          actualArr,
		TravelTimeMinutes:      r.TravelTimeMin,
		OverallDelayMinutes:    overall,
		DepartureDelayMinutes:  depDelay,
		ArrivalDelayMinutes:    arrDelay,
		IsDelayed:              overall > 0 || actualDep.Present || actualArr.Present,
		IsSignificantlyDelayed: overall > significantDelayThresholdMinutes,
		TransfersCount:         r.TransfersCount,
		PriceMinorUnits:        secondClassPrice(r.TravelClasses),
		Legs:                   legs,
		IntermediateStations:   r.IntermediateStations,
	}
}

func convertLegs(segments []rawSegment) []types.Leg {
	legs := make([]types.Leg, 0, len(segments))
	for i, seg := range segments {
		schedDep := parseSentinelAware(seg.Departure.Time)
		schedArr := parseSentinelAware(seg.Arrival.Time)
		actualDep := parseOptional(seg.Departure.TimeFact)
		actualArr := parseOptional(seg.Arrival.TimeFact)

		depDelay := minutesBetween(schedDep, actualDep)
		arrDelay := minutesBetween(schedArr, actualArr)

		identity := seg.TrainDetails.TrainNumber
		if seg.TrainDetails.Name != "" && seg.TrainDetails.Name != "Unknown" {
			identity = fmt.Sprintf("%s (%s)", seg.TrainDetails.TrainNumber, seg.TrainDetails.Name)
		}

		travelMinutes := 0
		if !schedDep.IsZero() && !schedArr.IsZero() {
			travelMinutes = int(schedArr.Sub(schedDep).Minutes())
		}

		legs = append(legs, types.Leg{
			LegNumber:             i + 1,
			TrainIdentity:         identity,
			FromStation:           seg.StartStation.Name,
			ToStation:             seg.DestionationStation.Name,
			ScheduledDeparture:    schedDep,
			ActualDeparture:       actualDep,
			ScheduledArrival:      schedArr,
			ActualArrival:         actualArr,
			DepartureDelayMinutes: depDelay,
			ArrivalDelayMinutes:   arrDelay,
			TravelTimeMinutes:     travelMinutes,
			Services:              seg.Services,
		})
	}
	return legs
}

// secondClassPrice prefers the "2" (second class) travel class price,
// falling back to the first available one, matching the original scraper's
// parse_route_info price selection.
func secondClassPrice(classes []rawTravelClass) int {
	if len(classes) == 0 {
		return 0
	}
	for _, c := range classes {
		if c.Name == "2" {
			return c.Price.Amount
		}
	}
	return classes[0].Price.Amount
}

// parseSentinelAware parses a scheduled timestamp, treating the empty
// string and the upstream's year-1 sentinel as the Go zero time rather
// than failing the whole itinerary.
func parseSentinelAware(raw string) time.Time {
	if raw == "" || raw == "0001-01-01T00:00:00+01:00" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseOptional(raw string) types.OptionalTime {
	if raw == "" || raw == "0001-01-01T00:00:00+01:00" {
		return types.OptionalTime{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return types.OptionalTime{}
	}
	return types.NewOptionalTime(t)
}

// minutesBetween returns the actual-minus-scheduled delay in whole minutes,
// or zero when either side is absent: a missing actual time implies a
// delay of zero, never an absent delay.
func minutesBetween(scheduled time.Time, actual types.OptionalTime) int {
	if scheduled.IsZero() || !actual.Present {
		return 0
	}
	return int(actual.Time.Sub(scheduled).Minutes())
}
