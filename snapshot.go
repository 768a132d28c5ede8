package chatbridge

import (
	"encoding/json"
	"fmt"

	"github.com/boat-builder/chatbridge/llm"
	"github.com/boat-builder/chatbridge/memory"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
)

// SnapshotVersion is the current version of the persisted record layout.
const SnapshotVersion = 1

// Snapshot is the persisted form of every user's memory. Only history and
// summary are stored; configuration is attached again at load time.
type Snapshot struct {
	Version  int                     `json:"version" jsonschema:"minimum=1"`
	Revision string                  `json:"revision" jsonschema:"format=uuid"`
	Users    map[string]memory.State `json:"users"`
}

func NewSnapshot(users map[string]memory.State) Snapshot {
	if users == nil {
		users = map[string]memory.State{}
	}
	return Snapshot{
		Version:  SnapshotVersion,
		Revision: uuid.NewString(),
		Users:    users,
	}
}

// EncodeSnapshot writes users as a new snapshot revision.
func EncodeSnapshot(users map[string]memory.State) ([]byte, error) {
	return json.Marshal(NewSnapshot(users))
}

// DecodeSnapshot parses a snapshot and rejects versions it does not know.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrSnapshotVersion, snapshot.Version)
	}
	if snapshot.Users == nil {
		snapshot.Users = map[string]memory.State{}
	}
	return snapshot, nil
}

// SnapshotSchema describes the snapshot record as JSON schema.
func SnapshotSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&Snapshot{})
}

// encodeState and decodeState serialize one user's record for the backends
// that store a row or key per user.
func encodeState(state memory.State) (string, error) {
	if state.MessageHistory == nil {
		state.MessageHistory = []llm.Message{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeState(version int, data string) (memory.State, error) {
	if version != SnapshotVersion {
		return memory.State{}, fmt.Errorf("%w: %d", ErrSnapshotVersion, version)
	}
	var state memory.State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return memory.State{}, fmt.Errorf("failed to decode memory state: %w", err)
	}
	return state, nil
}
