package models

const GeoJSONPoint = "Point"

// Location is a GeoJSON point. Coordinates are always [lng, lat].
type Location struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates" validate:"required,coordinates"`
	Address     string    `json:"address,omitempty" bson:"address,omitempty"`
}

func NewPoint(lng, lat float64) Location {
	return Location{Type: GeoJSONPoint, Coordinates: []float64{lng, lat}}
}

func NewAddressedPoint(lng, lat float64, address string) Location {
	loc := NewPoint(lng, lat)
	loc.Address = address
	return loc
}

func (l Location) Latitude() float64 {
	if len(l.Coordinates) >= 2 {
		return l.Coordinates[1]
	}
	return 0
}

func (l Location) Longitude() float64 {
	if len(l.Coordinates) >= 1 {
		return l.Coordinates[0]
	}
	return 0
}

func (l Location) IsValid() bool {
	if len(l.Coordinates) != 2 {
		return false
	}
	lng, lat := l.Coordinates[0], l.Coordinates[1]
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}
