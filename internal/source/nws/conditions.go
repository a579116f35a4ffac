package nws

import (
	"strings"

	"github.com/breezyweather/breezyd/internal/weather"
)

// keywords are checked in order against the lower-cased forecast text.
var keywords = []struct {
	words     []string
	condition weather.Condition
}{
	{[]string{"thunder", "t-storm"}, weather.ConditionThunderstorm},
	{[]string{"hail"}, weather.ConditionHail},
	{[]string{"sleet", "freezing", "ice pellets", "wintry mix"}, weather.ConditionSleet},
	{[]string{"snow", "flurries", "blizzard"}, weather.ConditionSnow},
	{[]string{"rain", "showers", "drizzle"}, weather.ConditionRain},
	{[]string{"fog", "mist"}, weather.ConditionFog},
	{[]string{"haze", "smoke", "dust", "sand"}, weather.ConditionHaze},
	{[]string{"windy", "breezy", "blustery"}, weather.ConditionWind},
	{[]string{"partly", "mostly sunny", "mostly clear"}, weather.ConditionPartlyCloudy},
	{[]string{"cloudy", "overcast"}, weather.ConditionCloudy},
	{[]string{"sunny", "clear", "fair"}, weather.ConditionClear},
}

// conditionFromText maps an NWS short forecast or observation text.
func conditionFromText(text string) weather.Condition {
	t := strings.ToLower(text)
	for _, k := range keywords {
		for _, w := range k.words {
			if strings.Contains(t, w) {
				return k.condition
			}
		}
	}
	return weather.ConditionUnknown
}
