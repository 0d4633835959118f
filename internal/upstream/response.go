package upstream

// The upstream payload is loosely typed and its shape changes across
// itineraries. Every field below is decoded permissively:
// unrecognized/absent fields fall back to the zero value rather than
// failing the whole response, and the sentinel timestamp
// "0001-01-01T00:00:00+01:00" is handled by types.OptionalTime at the
// boundary where a field is promoted into the domain model (see parse.go).

type rawResponse struct {
	Route []rawRoute `json:"route"`
}

type rawTimePair struct {
	Time         string `json:"time"`
	TimeFact     string `json:"timeFact"`
	TimeExpected string `json:"timeExpected"`
}

type rawStation struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type rawTrainDetails struct {
	Name        string `json:"name"`
	TrainNumber string `json:"trainNumber"`
}

type rawRouteService struct {
	Description string `json:"description"`
}

type rawPrice struct {
	Amount int `json:"amount"`
}

type rawTravelClass struct {
	Name  string   `json:"name"`
	Price rawPrice `json:"price"`
}

type rawSegment struct {
	TrainDetails        rawTrainDetails `json:"trainDetails"`
	StartStation        rawStation      `json:"startStation"`
	DestionationStation rawStation      `json:"destionationStation"` // upstream typo, preserved intentionally
	Departure           rawTimePair     `json:"departure"`
	Arrival             rawTimePair     `json:"arrival"`
	Services            []string        `json:"services"`
}

type rawDetails struct {
	TrainFullName string       `json:"trainFullName"`
	Routes        []rawSegment `json:"routes"`
}

type rawRoute struct {
	Details              rawDetails        `json:"details"`
	DelayMin             int               `json:"delayMin"`
	TravelTimeMin        int               `json:"travelTimeMin"`
	Departure            rawTimePair       `json:"departure"`
	Arrival              rawTimePair       `json:"arrival"`
	TransfersCount       int               `json:"transfersCount"`
	TravelClasses        []rawTravelClass  `json:"travelClasses"`
	RouteServices        []rawRouteService `json:"routeServices"`
	IntermediateStations []string          `json:"intermediateStations"`
}
