package docstore

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// TimeLayout is the fixed-width UTC layout used by backends that persist
// timestamps as strings, so that lexical and chronological order agree.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Decode copies a document's fields into out, a pointer to a struct whose
// fields carry `doc` tags. Numbers are converted between widths and
// timestamps may arrive as time.Time or as RFC 3339 strings.
func Decode(doc Document, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "doc",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return fmt.Errorf("while building decoder for %s: %w", doc.Path, err)
	}
	if err := decoder.Decode(doc.Fields); err != nil {
		return fmt.Errorf("while decoding %s: %w", doc.Path, err)
	}
	return nil
}
