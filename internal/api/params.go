package api

import (
	"fmt"
	"net/url"
	"strconv"
)

// parseIntParam reads an integer query parameter with bounds checking.
// A max of 0 or less means unbounded.
func parseIntParam(params url.Values, name string, fallback, min, max int) (int, error) {
	raw := params.Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parameter %q must be an integer", name)
	}
	if value < min {
		return 0, fmt.Errorf("parameter %q must be at least %d", name, min)
	}
	if max > 0 && value > max {
		return 0, fmt.Errorf("parameter %q must be at most %d", name, max)
	}
	return value, nil
}

// parseFloatParam reads a float query parameter constrained to [min, max].
func parseFloatParam(params url.Values, name string, fallback, min, max float64) (float64, error) {
	raw := params.Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %q must be a number", name)
	}
	if value < min || value > max {
		return 0, fmt.Errorf("parameter %q must be between %g and %g", name, min, max)
	}
	return value, nil
}
