package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/model"
)

var ErrNotLatin1 = errors.New("binary field holds a code point above 0xff")

// ParseEnvelope unwraps one gateway message. service_data wins over mfg_data
// when it is present and non-empty.
func ParseEnvelope(raw []byte, receivedAt time.Time) (model.Advertisement, error) {
	var e model.InboundEnvelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return model.Advertisement{}, err
	}
	if strings.TrimSpace(e.Address.Address) == "" {
		return model.Advertisement{}, errors.New("missing field: address.address")
	}
	if strings.TrimSpace(e.ReceiverMAC) == "" {
		return model.Advertisement{}, errors.New("missing field: receiver_mac")
	}

	adv := model.Advertisement{
		ReceiverMAC: e.ReceiverMAC,
		SourceMAC:   e.Address.Address,
		RSSI:        e.RSSI,
		ReceivedAt:  receivedAt,
	}

	data := e.ServiceData
	if data == nil || *data == "" {
		data = e.MfgData
	}
	if data != nil {
		b, err := DecodeCodePoints(*data)
		if err != nil {
			return model.Advertisement{}, fmt.Errorf("binary field of %s: %w", adv.SourceMAC, err)
		}
		adv.Payload = b
	}
	return adv, nil
}

// DecodeCodePoints maps every code point of s to one byte. The gateway encodes
// raw advertisement bytes this way to carry them inside JSON strings.
func DecodeCodePoints(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xff {
			return nil, ErrNotLatin1
		}
		out = append(out, byte(r))
	}
	return out, nil
}
