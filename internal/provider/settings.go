package provider

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidateSettings checks a project's settings map against an adapter's
// declared SettingDescriptors -- type, allowed options, and numeric
// range -- before BuildArgs ever sees them. Uses the same
// go-playground/validator library gin's own request binding relies on
// internally, via its ad-hoc Var() check rather than struct tags, since
// settings arrive as a dynamic map rather than a fixed struct. Unknown
// keys are ignored: a client may send settings for a provider it no
// longer targets.
func ValidateSettings(descriptors []SettingDescriptor, settings map[string]any) error {
	validate := validator.New()
	for _, d := range descriptors {
		v, present := settings[d.Key]
		if !present {
			continue
		}
		if err := validateSetting(validate, d, v); err != nil {
			return fmt.Errorf("setting %q: %w", d.Key, err)
		}
	}
	return nil
}

func validateSetting(validate *validator.Validate, d SettingDescriptor, v any) error {
	switch d.Type {
	case SettingBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected a boolean, got %T", v)
		}

	case SettingString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected a string, got %T", v)
		}

	case SettingSelect:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected a string, got %T", v)
		}
		if len(d.Options) == 0 {
			return nil
		}
		if err := validate.Var(s, "oneof="+strings.Join(d.Options, " ")); err != nil {
			return fmt.Errorf("must be one of %v", d.Options)
		}

	case SettingNumber:
		n, ok := asFloat64(v)
		if !ok {
			return fmt.Errorf("expected a number, got %T", v)
		}
		var tags []string
		if d.Min != nil {
			tags = append(tags, fmt.Sprintf("gte=%g", *d.Min))
		}
		if d.Max != nil {
			tags = append(tags, fmt.Sprintf("lte=%g", *d.Max))
		}
		if len(tags) == 0 {
			return nil
		}
		if err := validate.Var(n, strings.Join(tags, ",")); err != nil {
			return fmt.Errorf("must satisfy range [%v, %v]", d.Min, d.Max)
		}
	}
	return nil
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
