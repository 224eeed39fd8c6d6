package schema

// SettingType enumerates the value types a plugin setting can declare.
// The admin console uses them to pick form widgets; the runtime uses them
// for validation.
type SettingType string

const (
	TypeText     SettingType = "text"
	TypeNumber   SettingType = "number"
	TypeBoolean  SettingType = "boolean"
	TypeSecret   SettingType = "secret"
	TypeTextarea SettingType = "textarea"
	TypeSelect   SettingType = "select"
)

// Setting declares a single plugin option: its name, type, and default.
type Setting struct {
	Name    string      `json:"name" yaml:"name" mapstructure:"name"`
	Label   string      `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`
	Type    SettingType `json:"type" yaml:"type" mapstructure:"type"`
	Default any         `json:"default,omitempty" yaml:"default,omitempty" mapstructure:"default"`

	// Options lists the allowed values for TypeSelect settings.
	Options []string `json:"options,omitempty" yaml:"options,omitempty" mapstructure:"options"`
}

// Schema is the ordered list of settings a plugin declares.
type Schema []Setting

// Lookup returns the declared setting by name.
func (s Schema) Lookup(name string) (Setting, bool) {
	for _, opt := range s {
		if opt.Name == name {
			return opt, true
		}
	}
	return Setting{}, false
}

// Defaults returns a map of setting names to their declared defaults.
func (s Schema) Defaults() map[string]any {
	out := make(map[string]any, len(s))
	for _, opt := range s {
		if opt.Default != nil {
			out[opt.Name] = opt.Default
		}
	}
	return out
}

// Merge layers block-level overrides over the declared defaults.
// Unknown keys are carried through untouched so plugins can accept
// free-form arguments beyond their schema.
func (s Schema) Merge(overrides map[string]any) map[string]any {
	out := s.Defaults()
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
