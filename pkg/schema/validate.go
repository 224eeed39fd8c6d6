package schema

import "fmt"

// Validate checks resolved values against the schema. Only declared keys are
// checked; extra keys pass through (plugins may accept free-form args).
func (s Schema) Validate(values map[string]any) error {
	var errs []error
	for _, opt := range s {
		value, ok := values[opt.Name]
		if !ok || value == nil {
			continue
		}
		if err := validateType(opt, value); err != nil {
			errs = append(errs, &ValidationError{Key: opt.Name, Reason: err.Error(), Value: value})
		}
	}
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

func validateType(opt Setting, value any) error {
	switch opt.Type {
	case TypeText, TypeSecret, TypeTextarea:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case TypeNumber:
		switch value.(type) {
		case int, int32, int64, float32, float64:
		default:
			return fmt.Errorf("expected number, got %T", value)
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
	case TypeSelect:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		for _, allowed := range opt.Options {
			if str == allowed {
				return nil
			}
		}
		return fmt.Errorf("value %q not in options %v", str, opt.Options)
	default:
		return fmt.Errorf("unknown setting type %q", opt.Type)
	}
	return nil
}
