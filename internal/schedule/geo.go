package schedule

import "math"

const earthRadiusMeters = 6371000.0

// Distance returns the great-circle distance in meters.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// boundingBox returns a lat/lon box that contains every point within radius
// meters of (lat, lon). noLonBound is set when the circle reaches a pole or
// spans the antimeridian, in which case only latitude can be used.
func boundingBox(lat, lon, radius float64) (minLat, maxLat, minLon, maxLon float64, noLonBound bool) {
	deg := 180 / math.Pi
	radius *= 1.001 // float slack, the exact check runs afterwards
	dLat := radius / earthRadiusMeters * deg
	minLat, maxLat = lat-dLat, lat+dLat

	widest := math.Max(math.Abs(minLat), math.Abs(maxLat))
	if widest >= 90 {
		return minLat, maxLat, 0, 0, true
	}
	dLon := radius / (earthRadiusMeters * math.Cos(widest*math.Pi/180)) * deg
	minLon, maxLon = lon-dLon, lon+dLon
	if minLon < -180 || maxLon > 180 {
		return minLat, maxLat, 0, 0, true
	}
	return minLat, maxLat, minLon, maxLon, false
}
