package search

// ErrConfiguration is returned when a search component is constructed with a
// missing collaborator or an unusable setting.
// Use errors.Is(err, ErrConfiguration) to check for this error.
var ErrConfiguration = &ConfigurationError{}

// ErrInvalidParameter is returned when a sequence length or alphabet passed to
// the sampler or mutator is out of range.
// Use errors.Is(err, ErrInvalidParameter) to check for this error.
var ErrInvalidParameter = &InvalidParameterError{}

// ConfigurationError reports a component that cannot be built as requested.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return "configuration error: " + e.Field + " " + e.Reason
	}
	return "configuration error"
}

func (e *ConfigurationError) Is(target error) bool {
	_, ok := target.(*ConfigurationError)
	return ok
}

// InvalidParameterError reports an out-of-range argument.
type InvalidParameterError struct {
	Param  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	if e.Param != "" {
		return "invalid parameter: " + e.Param + " " + e.Reason
	}
	return "invalid parameter"
}

func (e *InvalidParameterError) Is(target error) bool {
	_, ok := target.(*InvalidParameterError)
	return ok
}
