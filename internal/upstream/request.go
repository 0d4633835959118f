package upstream

import "time"

// travelDateLayout is the ISO-8601 layout with the fixed +01:00 offset the
// upstream API expects for travelStartDate.
const travelDateLayout = "2006-01-02T15:04:05-07:00"

// upstreamOffset is the fixed +01:00 zone travelStartDate is stamped with.
var upstreamOffset = time.FixedZone("+01:00", 60*60)

// passenger is the single-passenger, standard-type descriptor the upstream
// API requires.
type passenger struct {
	PassengerCount        int      `json:"passengerCount"`
	PassengerID           int      `json:"passengerId"`
	CustomerTypeKey       string   `json:"customerTypeKey"`
	CustomerDiscountsKeys []string `json:"customerDiscountsKeys"`
}

// offerRequest is the JSON body of one offer-request call.
type offerRequest struct {
	OfferKind          string      `json:"offerkind"`
	StartStationCode   string      `json:"startStationCode"`
	InnerStationsCodes []string    `json:"innerStationsCodes"`
	EndStationCode     string      `json:"endStationCode"`
	Modalities         []int       `json:"modalities"`
	Passengers         []passenger `json:"passangers"`
	IsOneWayTicket     bool        `json:"isOneWayTicket"`
	IsTravelEndTime    bool        `json:"isTravelEndTime"`
	HasHungaryPass     bool        `json:"hasHungaryPass"`
	TravelStartDate    string      `json:"travelStartDate"`
	TravelReturnDate   string      `json:"travelReturnDate"`
	SelectedServices   []int       `json:"selectedServices"`
	IsOfDetailedSearch bool        `json:"isOfDetailedSearch"`
	IsFromTimeTable    bool        `json:"isFromTimeTable"`
}

// newOfferRequest builds the payload for one pair/date/time combination.
func newOfferRequest(startStation, endStation string, travelDate time.Time) offerRequest {
	// Keep travelDate's wall-clock date and time, stamped with the fixed
	// offset regardless of the location travelDate carries.
	y, mo, d := travelDate.Date()
	h, mi, s := travelDate.Clock()
	dateStr := time.Date(y, mo, d, h, mi, s, 0, upstreamOffset).Format(travelDateLayout)
	return offerRequest{
		OfferKind:          "1",
		StartStationCode:   startStation,
		InnerStationsCodes: []string{},
		EndStationCode:     endStation,
		Modalities:         []int{100, 200, 109},
		Passengers: []passenger{{
			PassengerCount:        1,
			PassengerID:           0,
			CustomerTypeKey:       "HU_44_025-065",
			CustomerDiscountsKeys: []string{},
		}},
		IsOneWayTicket:     true,
		IsTravelEndTime:    false,
		HasHungaryPass:     false,
		TravelStartDate:    dateStr,
		TravelReturnDate:   dateStr,
		SelectedServices:   []int{52},
		IsOfDetailedSearch: false,
		IsFromTimeTable:    false,
	}
}
