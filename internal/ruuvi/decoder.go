// Package ruuvi decodes RuuviTag manufacturer payloads.
//
// https://github.com/ruuvi/ruuvi-sensor-protocols
package ruuvi

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/model"
)

// Field names shared by every supported format.
const (
	FieldDataFormat    = "data_format"
	FieldTemperature   = "temperature"
	FieldHumidity      = "humidity"
	FieldPressure      = "pressure"
	FieldBattery       = "battery"
	FieldAcceleration  = "acceleration"
	FieldAccelerationX = "acceleration_x"
	FieldAccelerationY = "acceleration_y"
	FieldAccelerationZ = "acceleration_z"
)

// Fields only present in format 5.
const (
	FieldTxPower             = "tx_power"
	FieldMovementCounter     = "movement_counter"
	FieldMeasurementSequence = "measurement_sequence_number"
)

// DecodeFunc decodes a payload that starts at the format byte. ok is false when
// the payload cannot be read as that format.
type DecodeFunc func(payload []byte) (r model.Reading, ok bool)

// Decoder selects a DecodeFunc by format byte.
type Decoder map[byte]DecodeFunc

func NewDecoder() Decoder {
	return Decoder{
		3: decodeFormat3,
		5: decodeFormat5,
	}
}

// Decode returns ok=false for formats without a registered DecodeFunc.
func (d Decoder) Decode(format byte, payload []byte) (model.Reading, bool) {
	fn, found := d[format]
	if !found {
		return model.Reading{}, false
	}
	return fn(payload)
}

// RAWv1
type format3 struct {
	DataFormat          uint8
	Humidity            uint8
	Temperature         uint8
	TemperatureFraction uint8
	Pressure            uint16
	AccelerationX       int16
	AccelerationY       int16
	AccelerationZ       int16
	BatteryVoltageMv    uint16
}

func decodeFormat3(payload []byte) (model.Reading, bool) {
	var f format3
	if err := binary.Read(bytes.NewReader(payload), binary.BigEndian, &f); err != nil {
		return model.Reading{}, false
	}

	temp := float64(f.Temperature&0x7f) + float64(f.TemperatureFraction)/100.0
	if f.Temperature&0x80 != 0 {
		temp = -temp
	}
	x, y, z := float64(f.AccelerationX), float64(f.AccelerationY), float64(f.AccelerationZ)

	return model.Reading{Values: model.Telemetry{
		FieldDataFormat:    3,
		FieldHumidity:      float64(f.Humidity) * 0.5,
		FieldTemperature:   round2(temp),
		FieldPressure:      round2(float64(uint32(f.Pressure)+50000) / 100),
		FieldAcceleration:  math.Sqrt(x*x + y*y + z*z),
		FieldAccelerationX: x,
		FieldAccelerationY: y,
		FieldAccelerationZ: z,
		FieldBattery:       float64(f.BatteryVoltageMv),
	}}, true
}

// RAWv2
type format5 struct {
	DataFormat          uint8
	Temperature         int16
	Humidity            uint16
	Pressure            uint16
	AccelerationX       int16
	AccelerationY       int16
	AccelerationZ       int16
	PowerInfo           uint16
	MovementCounter     uint8
	MeasurementSequence uint16
	MAC                 [6]byte
}

func decodeFormat5(payload []byte) (model.Reading, bool) {
	var f format5
	if err := binary.Read(bytes.NewReader(payload), binary.BigEndian, &f); err != nil {
		return model.Reading{}, false
	}

	r := model.Reading{Values: model.Telemetry{FieldDataFormat: 5}}
	set := func(field string, available bool, v float64) {
		if available {
			r.Values[field] = v
		} else {
			r.Unavailable = append(r.Unavailable, field)
		}
	}

	set(FieldTemperature, f.Temperature != math.MinInt16, round2(float64(f.Temperature)*0.005))
	set(FieldHumidity, f.Humidity != math.MaxUint16, round2(float64(f.Humidity)*0.0025))
	set(FieldPressure, f.Pressure != math.MaxUint16, round2(float64(uint32(f.Pressure)+50000)/100))

	accelOK := f.AccelerationX != math.MinInt16 && f.AccelerationY != math.MinInt16 && f.AccelerationZ != math.MinInt16
	x, y, z := float64(f.AccelerationX), float64(f.AccelerationY), float64(f.AccelerationZ)
	set(FieldAccelerationX, accelOK, x)
	set(FieldAccelerationY, accelOK, y)
	set(FieldAccelerationZ, accelOK, z)
	set(FieldAcceleration, accelOK, math.Sqrt(x*x+y*y+z*z))

	battery := f.PowerInfo >> 5
	set(FieldBattery, battery != 0x7ff, float64(battery)+1600)
	tx := f.PowerInfo & 0x1f
	set(FieldTxPower, tx != 0x1f, float64(tx)*2-40)
	set(FieldMovementCounter, f.MovementCounter != math.MaxUint8, float64(f.MovementCounter))
	set(FieldMeasurementSequence, f.MeasurementSequence != math.MaxUint16, float64(f.MeasurementSequence))
	return r, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
