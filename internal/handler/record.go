package handler

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/model"
	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/ruuvi"
)

const MeasurementName = "ruuvitag"

// ErrMissingField means the decoder produced fewer fields than a record needs.
var ErrMissingField = errors.New("decoded telemetry is missing a required field")

var RequiredFields = []string{
	ruuvi.FieldTemperature,
	ruuvi.FieldHumidity,
	ruuvi.FieldPressure,
	ruuvi.FieldBattery,
	ruuvi.FieldAcceleration,
	ruuvi.FieldAccelerationX,
	ruuvi.FieldAccelerationY,
	ruuvi.FieldAccelerationZ,
}

// BuildMeasurement fails with ErrMissingField when a required field is absent
// from r.Values without being listed in r.Unavailable.
func BuildMeasurement(receiverMAC, sourceMAC string, r model.Reading, name string, at time.Time) (model.Measurement, error) {
	for _, f := range RequiredFields {
		if _, ok := r.Values[f]; !ok && !slices.Contains(r.Unavailable, f) {
			return model.Measurement{}, fmt.Errorf("%w: %s", ErrMissingField, f)
		}
	}

	fields := make(map[string]any, len(r.Values)+1)
	fields["receiver_mac"] = receiverMAC
	for k, v := range r.Values {
		fields[k] = v
	}

	return model.Measurement{
		Name: MeasurementName,
		Tags: map[string]string{
			"mac":  sourceMAC,
			"name": name,
		},
		Fields: fields,
		Time:   at,
	}, nil
}
