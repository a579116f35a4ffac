package openweathermap

import "github.com/breezyweather/breezyd/internal/weather"

// describe returns the condition and description of the first entry.
func describe(conditions []condition) (weather.Condition, string) {
	if len(conditions) == 0 {
		return weather.ConditionUnknown, ""
	}
	c := conditions[0]
	return mapCondition(c.ID, c.Main), c.Description
}

func iconOf(conditions []condition) string {
	if len(conditions) == 0 {
		return ""
	}
	return conditions[0].Icon
}

// mapCondition maps an OpenWeatherMap condition ID to a domain condition.
// The main group is used when the ID is unknown.
func mapCondition(id int, main string) weather.Condition {
	switch {
	case id >= 200 && id < 300:
		return weather.ConditionThunderstorm
	case id >= 300 && id < 400:
		return weather.ConditionRain
	case id == 511:
		return weather.ConditionSleet
	case id >= 500 && id < 600:
		return weather.ConditionRain
	case id >= 611 && id <= 616:
		return weather.ConditionSleet
	case id >= 600 && id < 700:
		return weather.ConditionSnow
	case id == 701 || id == 741:
		return weather.ConditionFog
	case id == 771 || id == 781:
		return weather.ConditionWind
	case id >= 700 && id < 800:
		return weather.ConditionHaze
	case id == 800:
		return weather.ConditionClear
	case id == 801 || id == 802:
		return weather.ConditionPartlyCloudy
	case id == 803 || id == 804:
		return weather.ConditionCloudy
	}

	switch main {
	case "Clear":
		return weather.ConditionClear
	case "Clouds":
		return weather.ConditionCloudy
	case "Rain", "Drizzle":
		return weather.ConditionRain
	case "Thunderstorm":
		return weather.ConditionThunderstorm
	case "Snow":
		return weather.ConditionSnow
	case "Mist", "Fog":
		return weather.ConditionFog
	case "Haze", "Dust", "Sand", "Ash", "Smoke":
		return weather.ConditionHaze
	case "Squall", "Tornado":
		return weather.ConditionWind
	default:
		return weather.ConditionUnknown
	}
}
