package model

import "time"

// InboundEnvelope is the JSON document published by the BLE gateway, one per
// (deduplicated) advertisement. Only the keys the loader needs are mapped.
type InboundEnvelope struct {
	ReceiverMAC string         `json:"receiver_mac"`
	Address     InboundAddress `json:"address"`
	RSSI        *int           `json:"rssi"`
	ServiceData *string        `json:"service_data"`
	MfgData     *string        `json:"mfg_data"`
}

type InboundAddress struct {
	Address string `json:"address"`
}

// Advertisement is the unwrapped envelope with its binary field restored.
type Advertisement struct {
	ReceiverMAC string
	SourceMAC   string
	RSSI        *int
	Payload     []byte
	ReceivedAt  time.Time
}

// Telemetry holds decoded sensor fields by name.
type Telemetry map[string]float64

// Reading is one decoded frame. Unavailable names the fields the sensor
// flagged as "not available"; they are absent from Values.
type Reading struct {
	Values      Telemetry
	Unavailable []string
}

type Measurement struct {
	Name   string            `json:"measurement"`
	Tags   map[string]string `json:"tags"`
	Fields map[string]any    `json:"fields"`
	Time   time.Time         `json:"time"`
}

type Rejection struct {
	Error       string    `json:"error"`
	Stage       string    `json:"stage"`
	SourceMAC   string    `json:"sourceMac,omitempty"`
	ReceiverMAC string    `json:"receiverMac,omitempty"`
	PayloadHex  string    `json:"payloadHex,omitempty"`
	Original    string    `json:"original,omitempty"`
	ReceivedAt  time.Time `json:"receivedAt"`
}
