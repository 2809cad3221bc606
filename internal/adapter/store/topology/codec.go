package topology

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strconv"
	"strings"
)

const codecVersion = 1

type envelope struct {
	Version  int
	Topology *Topology
}

// Encode serializes a topology.
func Encode(t *Topology) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(envelope{Version: codecVersion, Topology: t}); err != nil {
		return nil, fmt.Errorf("failed to encode topology: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode restores a topology written by Encode.
func Decode(data []byte) (*Topology, error) {
	var e envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&e); err != nil {
		return nil, fmt.Errorf("failed to decode topology: %w", err)
	}
	if e.Version != codecVersion || e.Topology == nil {
		return nil, fmt.Errorf("unsupported topology encoding version %d", e.Version)
	}
	return e.Topology, nil
}

func formatStamp(modTime int64) []byte {
	return []byte(strconv.FormatInt(modTime, 10))
}

func parseStamp(data []byte) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}
