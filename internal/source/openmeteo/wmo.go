package openmeteo

import "github.com/breezyweather/breezyd/internal/weather"

// conditionFromWMO maps a WMO weather interpretation code to a condition
// and an English description.
func conditionFromWMO(code int) (weather.Condition, string) {
	switch code {
	case 0:
		return weather.ConditionClear, "Clear sky"
	case 1:
		return weather.ConditionClear, "Mainly clear"
	case 2:
		return weather.ConditionPartlyCloudy, "Partly cloudy"
	case 3:
		return weather.ConditionCloudy, "Overcast"
	case 45, 48:
		return weather.ConditionFog, "Fog"
	case 51, 53, 55:
		return weather.ConditionRain, "Drizzle"
	case 56, 57:
		return weather.ConditionSleet, "Freezing drizzle"
	case 61, 63, 65:
		return weather.ConditionRain, "Rain"
	case 66, 67:
		return weather.ConditionSleet, "Freezing rain"
	case 71, 73, 75, 77:
		return weather.ConditionSnow, "Snow"
	case 80, 81, 82:
		return weather.ConditionRain, "Rain showers"
	case 85, 86:
		return weather.ConditionSnow, "Snow showers"
	case 95:
		return weather.ConditionThunderstorm, "Thunderstorm"
	case 96, 99:
		return weather.ConditionHail, "Thunderstorm with hail"
	default:
		return weather.ConditionUnknown, ""
	}
}

func conditionPtr(code *int) (weather.Condition, string) {
	if code == nil {
		return weather.ConditionUnknown, ""
	}
	return conditionFromWMO(*code)
}
