package colorcycle

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"
)

// risingLookahead is how far ahead the elevation is sampled to tell sunrise from sunset
const risingLookahead = time.Minute

// SunPosition returns the sun elevation in degrees at t and whether it is rising
func SunPosition(t time.Time, lat, lon float64) (elevation float64, rising bool) {
	now := suncalc.GetPosition(t, lat, lon).Altitude
	later := suncalc.GetPosition(t.Add(risingLookahead), lat, lon).Altitude
	return now * (180.0 / math.Pi), later > now
}

// TimeOfDay returns the seconds elapsed since local midnight of t
func TimeOfDay(t time.Time) float64 {
	return float64(t.Hour()*3600+t.Minute()*60+t.Second()) + float64(t.Nanosecond())/1e9
}
