package ruuvi

import (
	"encoding/hex"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestDecode_Format3(t *testing.T) {
	d := NewDecoder()

	tel, ok := d.Decode(3, mustHex(t, "03c6013fcaddffe8001503fe0b3b"))
	require.True(t, ok)

	assert.Equal(t, 3.0, tel.Values[FieldDataFormat])
	assert.Equal(t, 99.0, tel.Values[FieldHumidity])
	assert.Equal(t, 1.63, tel.Values[FieldTemperature])
	assert.Equal(t, 1019.33, tel.Values[FieldPressure])
	assert.Equal(t, -24.0, tel.Values[FieldAccelerationX])
	assert.Equal(t, 21.0, tel.Values[FieldAccelerationY])
	assert.Equal(t, 1022.0, tel.Values[FieldAccelerationZ])
	assert.InDelta(t, math.Sqrt(24*24+21*21+1022*1022), tel.Values[FieldAcceleration], 1e-9)
	assert.Equal(t, 2875.0, tel.Values[FieldBattery])
}

func TestDecode_Format3NegativeTemperature(t *testing.T) {
	tel, ok := NewDecoder().Decode(3, mustHex(t, "03418145c35f000000000000abcd"))
	require.True(t, ok)

	assert.Equal(t, -1.69, tel.Values[FieldTemperature])
	assert.Equal(t, 32.5, tel.Values[FieldHumidity])
}

func TestDecode_Format5(t *testing.T) {
	tel, ok := NewDecoder().Decode(5, mustHex(t, "0512fc5394c37c0004fffc040cac364200cdcbb8334c884f"))
	require.True(t, ok)

	assert.Equal(t, 5.0, tel.Values[FieldDataFormat])
	assert.Equal(t, 24.3, tel.Values[FieldTemperature])
	assert.Equal(t, 53.49, tel.Values[FieldHumidity])
	assert.Equal(t, 1000.44, tel.Values[FieldPressure])
	assert.Equal(t, 4.0, tel.Values[FieldAccelerationX])
	assert.Equal(t, -4.0, tel.Values[FieldAccelerationY])
	assert.Equal(t, 1036.0, tel.Values[FieldAccelerationZ])
	assert.Equal(t, 2977.0, tel.Values[FieldBattery])
	assert.Equal(t, 4.0, tel.Values[FieldTxPower])
	assert.Equal(t, 66.0, tel.Values[FieldMovementCounter])
	assert.Equal(t, 205.0, tel.Values[FieldMeasurementSequence])
	assert.Empty(t, tel.Unavailable)
}

func TestDecode_Format5InvalidValuesAreAbsent(t *testing.T) {
	tel, ok := NewDecoder().Decode(5, mustHex(t, "058000ffffffff800080008000ffffffffffffffffffffff"))
	require.True(t, ok)

	assert.Len(t, tel.Values, 1)
	assert.Equal(t, 5.0, tel.Values[FieldDataFormat])
	assert.ElementsMatch(t, []string{
		FieldTemperature, FieldHumidity, FieldPressure,
		FieldAcceleration, FieldAccelerationX, FieldAccelerationY, FieldAccelerationZ,
		FieldBattery, FieldTxPower, FieldMovementCounter, FieldMeasurementSequence,
	}, tel.Unavailable)
}

func TestDecode_Format5HumidityNotAvailable(t *testing.T) {
	tel, ok := NewDecoder().Decode(5, mustHex(t, "0512fcffffc37c0004fffc040cac364200cdcbb8334c884f"))
	require.True(t, ok)

	assert.Equal(t, []string{FieldHumidity}, tel.Unavailable)
	assert.NotContains(t, tel.Values, FieldHumidity)
	assert.Equal(t, 24.3, tel.Values[FieldTemperature])
	assert.Equal(t, 1000.44, tel.Values[FieldPressure])
}

func TestDecode_Unrecognized(t *testing.T) {
	d := NewDecoder()

	tests := []struct {
		name    string
		format  byte
		payload string
	}{
		{"unknown format", 0x04, "04aabbcc"},
		{"encrypted format", 0x08, "08"},
		{"format 3 truncated", 0x03, "03c6013f"},
		{"format 5 truncated", 0x05, "0512fc5394"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tel, ok := d.Decode(tt.format, mustHex(t, tt.payload))
			assert.False(t, ok)
			assert.Nil(t, tel.Values)
			assert.Empty(t, tel.Unavailable)
		})
	}
}
