package insights

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// BindFields decodes request fields into the struct pointed to by out. Field
// names are matched against `mapstructure` tags, falling back to a
// case-insensitive match on the struct field name. Numbers arrive as float64
// and are truncated when the target is an integer. A comma separated string
// is accepted where a string slice is expected.
func BindFields(fields map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: false,
		ErrorUnused:      false,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create field decoder: %w", err)
	}

	if err := decoder.Decode(fields); err != nil {
		return fmt.Errorf("failed to bind fields: %w", err)
	}
	return nil
}
