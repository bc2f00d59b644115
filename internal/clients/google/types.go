package google

type waypoint struct {
	Address string `json:"address"`
	Via     bool   `json:"via,omitempty"`
}

type routesRequest struct {
	Origin            waypoint   `json:"origin"`
	Destination       waypoint   `json:"destination"`
	Intermediates     []waypoint `json:"intermediates,omitempty"`
	TravelMode        string     `json:"travelMode"`
	RoutingPreference string     `json:"routingPreference"`
}

type routesResponse struct {
	Routes []googleRoute `json:"routes"`
}

type googleRoute struct {
	Duration       string         `json:"duration"`
	StaticDuration string         `json:"staticDuration"`
	DistanceMeters int32          `json:"distanceMeters"`
	Polyline       googlePolyline `json:"polyline"`
}

type googlePolyline struct {
	EncodedPolyline string `json:"encodedPolyline"`
}
