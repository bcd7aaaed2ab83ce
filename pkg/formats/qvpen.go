package formats

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/text/unicode/norm"

	"github.com/Faultbox/qvpen-tools/pkg/stroke"
)

// QvPen format errors.
var (
	ErrInvalidQvPen = fmt.Errorf("%w: invalid QvPen data", stroke.ErrInvalidInput)
)

// DefaultBareFileName is assigned to payloads that are a bare stroke array.
const DefaultBareFileName = "exported_data.json"

// qvpenSchema accepts either a bare array of stroke records or an object
// wrapping them in exportedData.
const qvpenSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "stroke": {
      "type": "object",
      "required": ["positions"],
      "properties": {
        "positions": {"type": "array", "items": {"type": "number"}},
        "color": {
          "type": ["object", "null"],
          "properties": {"type": {"type": "string"}}
        },
        "width": {"type": "number"},
        "thickness": {"type": "number"}
      }
    },
    "strokes": {"type": "array", "items": {"$ref": "#/definitions/stroke"}}
  },
  "oneOf": [
    {"$ref": "#/definitions/strokes"},
    {
      "type": "object",
      "required": ["exportedData"],
      "properties": {
        "exportedData": {"$ref": "#/definitions/strokes"},
        "width": {"type": "number"},
        "fileName": {"type": "string"},
        "timestamp": {"type": "string"},
        "trimmedTimestamp": {"type": "string"}
      }
    }
  ]
}`

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(qvpenSchema))
	})
	return schema, schemaErr
}

// qvpenFile is the object form of a QvPen export.
type qvpenFile struct {
	ExportedData     []stroke.Stroke `json:"exportedData"`
	Width            *float64        `json:"width,omitempty"`
	FileName         string          `json:"fileName,omitempty"`
	Timestamp        string          `json:"timestamp,omitempty"`
	TrimmedTimestamp string          `json:"trimmedTimestamp,omitempty"`
}

// ValidateQvPen checks a payload against the QvPen schema without decoding it.
func ValidateQvPen(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compiling QvPen schema: %w", err)
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQvPen, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidQvPen, strings.Join(msgs, "; "))
	}
	return nil
}

// ParseQvPen decodes a QvPen payload. Bare stroke arrays get a default file
// name and the current time as timestamp.
func ParseQvPen(data []byte) (*stroke.Set, error) {
	return parseQvPen(data, time.Now())
}

func parseQvPen(data []byte, now time.Time) (*stroke.Set, error) {
	if err := ValidateQvPen(data); err != nil {
		return nil, err
	}

	var set *stroke.Set
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var strokes []stroke.Stroke
		if err := json.Unmarshal(trimmed, &strokes); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQvPen, err)
		}
		set = &stroke.Set{
			Strokes:   strokes,
			FileName:  DefaultBareFileName,
			Timestamp: now.UTC().Format(time.RFC3339),
		}
	} else {
		var f qvpenFile
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQvPen, err)
		}
		set = &stroke.Set{
			Strokes:          f.ExportedData,
			Width:            f.Width,
			FileName:         f.FileName,
			Timestamp:        f.Timestamp,
			TrimmedTimestamp: f.TrimmedTimestamp,
		}
	}

	if set.Strokes == nil {
		set.Strokes = []stroke.Stroke{}
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQvPen, err)
	}
	return set, nil
}

// LoadQvPen reads and parses a QvPen file.
func LoadQvPen(path string) (*stroke.Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	set, err := ParseQvPen(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return set, nil
}

// MarshalQvPen encodes a set in the object form, indented like the viewer's
// own exports.
func MarshalQvPen(set *stroke.Set) ([]byte, error) {
	if set == nil {
		return nil, fmt.Errorf("%w: nil stroke set", stroke.ErrInvalidInput)
	}
	f := qvpenFile{
		ExportedData:     set.Strokes,
		Width:            set.Width,
		FileName:         set.FileName,
		Timestamp:        set.Timestamp,
		TrimmedTimestamp: set.TrimmedTimestamp,
	}
	if f.ExportedData == nil {
		f.ExportedData = []stroke.Stroke{}
	}
	return json.MarshalIndent(f, "", "  ")
}

// SaveQvPen writes a set to path.
func SaveQvPen(set *stroke.Set, path string) error {
	data, err := MarshalQvPen(set)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ExportFileName returns the name an export should be saved under: the
// set's own file name, or one derived from now.
func ExportFileName(set *stroke.Set, now time.Time) string {
	if set != nil && set.FileName != "" {
		return norm.NFC.String(set.FileName)
	}
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(now.UTC().Format("2006-01-02T15:04:05.000Z"))
	return "qvpen_export_" + stamp + ".json"
}
