package channel_test

import "encoding/json"

// mqttRoundTrip mirrors the JSON encoding applied by the MQTT pubsub.
func mqttRoundTrip(msg any) map[string]interface{} {
	data, err := json.Marshal(msg)
	if err != nil {
		panic(err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}

	return out
}
