package throttle

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Recognized option keys.
const (
	OptionWindowDuration = "window_duration"
	OptionRequestLimit   = "request_limit"
	OptionRetryDelay     = "retry_delay"
)

// DefaultRetryDelay is used when retry_delay is not given.
const DefaultRetryDelay = 5 * time.Second

var (
	validOptions    = []string{OptionWindowDuration, OptionRequestLimit, OptionRetryDelay}
	requiredOptions = []string{OptionWindowDuration, OptionRequestLimit}
)

// Options is the raw configuration map handed to Configure.
//
// Duration values may be a time.Duration, a duration string such as "10s",
// or a whole number of seconds. request_limit must be a whole number.
type Options map[string]any

// Config is a validated throttle configuration. It is never mutated once a
// limiter has been built from it.
type Config struct {
	// WindowDuration is the rolling window length.
	WindowDuration time.Duration

	// RequestLimit is the maximum number of admissions per window.
	RequestLimit int

	// RetryDelay is how long a blocked caller sleeps before polling again.
	RetryDelay time.Duration
}

// Engaged reports whether the configuration actually limits anything.
// A zero or negative window or limit leaves the throttle disengaged and
// every admission succeeds immediately.
func (c Config) Engaged() bool {
	return c.WindowDuration > 0 && c.RequestLimit > 0
}

// Options returns the configuration as an Options map.
func (c Config) Options() Options {
	return Options{
		OptionWindowDuration: c.WindowDuration,
		OptionRequestLimit:   c.RequestLimit,
		OptionRetryDelay:     c.RetryDelay,
	}
}

// ParseOptions validates opts and returns the resulting Config.
//
// Unknown keys are reported first as *InvalidOptionError, then absent
// required keys as *MissingOptionError. Values that cannot be converted, and
// a non-positive retry delay, produce *InvalidValueError.
func ParseOptions(opts Options) (Config, error) {
	if unknown := unknownKeys(opts); len(unknown) > 0 {
		return Config{}, &InvalidOptionError{Keys: unknown}
	}

	var missing []string
	for _, key := range requiredOptions {
		if _, ok := opts[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Config{}, &MissingOptionError{Keys: missing}
	}

	window, err := toDuration(OptionWindowDuration, opts[OptionWindowDuration])
	if err != nil {
		return Config{}, err
	}

	limit, err := toInt(OptionRequestLimit, opts[OptionRequestLimit])
	if err != nil {
		return Config{}, err
	}

	retry := DefaultRetryDelay
	if raw, ok := opts[OptionRetryDelay]; ok && raw != nil {
		retry, err = toDuration(OptionRetryDelay, raw)
		if err != nil {
			return Config{}, err
		}
		if retry <= 0 {
			return Config{}, &InvalidValueError{Key: OptionRetryDelay, Value: raw, Reason: "must be positive"}
		}
	}

	return Config{
		WindowDuration: window,
		RequestLimit:   limit,
		RetryDelay:     retry,
	}, nil
}

func unknownKeys(opts Options) []string {
	var unknown []string
	for key := range opts {
		if !isValidOption(key) {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func isValidOption(key string) bool {
	for _, valid := range validOptions {
		if key == valid {
			return true
		}
	}
	return false
}

// maxSeconds is the largest whole-second value a time.Duration can hold.
const maxSeconds = int64(math.MaxInt64 / int64(time.Second))

func toDuration(key string, raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case time.Duration:
		return v, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, &InvalidValueError{Key: key, Value: raw, Reason: err.Error()}
		}
		return d, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, &InvalidValueError{Key: key, Value: raw, Reason: "seconds must be a whole number"}
		}
		if math.Abs(v) > float64(maxSeconds) {
			return 0, &InvalidValueError{Key: key, Value: raw, Reason: "out of range"}
		}
		return time.Duration(v) * time.Second, nil
	}

	n, ok := asInt64(raw)
	if !ok {
		return 0, &InvalidValueError{Key: key, Value: raw, Reason: fmt.Sprintf("unsupported type %T", raw)}
	}
	if n > maxSeconds || n < -maxSeconds {
		return 0, &InvalidValueError{Key: key, Value: raw, Reason: "out of range"}
	}
	return time.Duration(n) * time.Second, nil
}

func toInt(key string, raw any) (int, error) {
	if v, ok := raw.(float64); ok {
		if v != math.Trunc(v) {
			return 0, &InvalidValueError{Key: key, Value: raw, Reason: "must be a whole number"}
		}
		// float64(math.MaxInt) rounds up, so equality is already out of range.
		if v >= float64(math.MaxInt) || v < float64(math.MinInt) {
			return 0, &InvalidValueError{Key: key, Value: raw, Reason: "out of range"}
		}
		return int(v), nil
	}

	n, ok := asInt64(raw)
	if !ok {
		return 0, &InvalidValueError{Key: key, Value: raw, Reason: fmt.Sprintf("unsupported type %T", raw)}
	}
	if n > math.MaxInt || n < math.MinInt {
		return 0, &InvalidValueError{Key: key, Value: raw, Reason: "out of range"}
	}
	return int(n), nil
}

func asInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	default:
		return 0, false
	}
}
