package names

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/config"
)

const mappingSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": { "type": "string" }
}`

var schema = jsonschema.MustCompileString("names.schema.json", mappingSchema)

// LoadFile reads a JSON object of MAC -> label. path "-" reads stdin.
// Content that is not such an object is logged and yields an empty table;
// only an unreadable file is an error.
func LoadFile(path string, stdin io.Reader, logger *log.Logger) (map[string]string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read mappings %s: %w", path, err)
	}

	table, err := parse(b)
	if err != nil {
		logger.Printf("[warn] unable to load mappings (%v): %s", err, config.Truncate(b, 256))
		return map[string]string{}, nil
	}
	return table, nil
}

func parse(b []byte) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, err
	}

	table := make(map[string]string)
	for mac, name := range doc.(map[string]any) {
		table[mac] = name.(string)
	}
	return table, nil
}
