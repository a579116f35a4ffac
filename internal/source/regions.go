package source

import "github.com/breezyweather/breezyd/internal/weather"

// Regions used by location rules. Boxes are deliberately generous; the
// country code wins when a location has one.
var (
	RegionContiguousUS = weather.BoundingBox{MinLat: 24.4, MaxLat: 49.4, MinLon: -125.0, MaxLon: -66.9}
	RegionAlaska       = weather.BoundingBox{MinLat: 51.2, MaxLat: 71.5, MinLon: -180.0, MaxLon: -129.9}
	RegionHawaii       = weather.BoundingBox{MinLat: 18.9, MaxLat: 22.3, MinLon: -160.3, MaxLon: -154.8}
	RegionEurope       = weather.BoundingBox{MinLat: 34.5, MaxLat: 71.2, MinLon: -25.0, MaxLon: 45.0}
	RegionNetherlands  = weather.BoundingBox{MinLat: 50.75, MaxLat: 53.7, MinLon: 3.2, MaxLon: 7.25}
)

// InUnitedStates reports whether loc is in the United States.
func InUnitedStates(loc *weather.Location) bool {
	if loc.CountryCode != "" {
		return loc.InCountry("US", "PR", "GU", "VI", "AS", "MP")
	}
	return RegionContiguousUS.Contains(loc.Lat, loc.Lon) ||
		RegionAlaska.Contains(loc.Lat, loc.Lon) ||
		RegionHawaii.Contains(loc.Lat, loc.Lon)
}

// InNetherlands reports whether loc is in the Netherlands.
func InNetherlands(loc *weather.Location) bool {
	if loc.CountryCode != "" {
		return loc.InCountry("NL")
	}
	return RegionNetherlands.Contains(loc.Lat, loc.Lon)
}

// InEurope reports whether loc lies inside the European box.
func InEurope(loc *weather.Location) bool {
	return RegionEurope.Contains(loc.Lat, loc.Lon)
}
