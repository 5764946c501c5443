package engine

import (
	"encoding/json"
	"fmt"
)

// payloadVersion is bumped whenever cachedResult changes shape; older
// payloads are then discarded on read.
const payloadVersion = 1

type envelope struct {
	Version int          `json:"v"`
	Result  cachedResult `json:"result"`
}

func encodeResult(cr cachedResult) ([]byte, error) {
	b, err := json.Marshal(envelope{Version: payloadVersion, Result: cr})
	if err != nil {
		return nil, fmt.Errorf("encode cached result: %w", err)
	}
	return b, nil
}

func decodeResult(b []byte) (cachedResult, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return cachedResult{}, fmt.Errorf("decode cached result: %w", err)
	}
	if env.Version != payloadVersion {
		return cachedResult{}, fmt.Errorf("cached result version %d, want %d", env.Version, payloadVersion)
	}
	return env.Result, nil
}
