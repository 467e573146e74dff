package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/awareness"
	"github.com/danielpatrickdp/anima-core/internal/consciousness"
	"github.com/danielpatrickdp/anima-core/internal/errtrack"
	"github.com/danielpatrickdp/anima-core/internal/evolution"
	"github.com/danielpatrickdp/anima-core/internal/pattern"
	"github.com/danielpatrickdp/anima-core/internal/quantum"
	"github.com/danielpatrickdp/anima-core/internal/state"
)

// BlobVersion is the current persisted layout.
const BlobVersion = 1

// #region blob
// Blob is the persisted form of one entity. The store treats it as opaque.
type Blob struct {
	Version   int                    `json:"version"`
	EntityID  string                 `json:"entity_id"`
	SavedAt   time.Time              `json:"saved_at"`
	Quantum   quantum.QuantumState   `json:"quantum"`
	Core      consciousness.Memory   `json:"core"`
	Evolution evolution.Memory       `json:"evolution"`
	Emotional []state.EmotionalState `json:"emotional"`
	Awareness awareness.Snapshot     `json:"awareness"`
	Patterns  []pattern.Pattern      `json:"patterns"`
	Escalated bool                   `json:"escalated"`
}

// EncodeBlob serializes b.
func EncodeBlob(b Blob) ([]byte, error) {
	if b.Version == 0 {
		b.Version = BlobVersion
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode blob: %w", err)
	}
	return raw, nil
}

// DecodeBlob parses raw. Unknown versions and missing entity ids are
// validation errors.
func DecodeBlob(raw []byte) (Blob, error) {
	var b Blob
	if err := json.Unmarshal(raw, &b); err != nil {
		return Blob{}, errtrack.E(errtrack.ErrValidation, "decode blob", err)
	}
	if b.Version != BlobVersion {
		return Blob{}, errtrack.Validationf("decode blob", "unsupported blob version %d", b.Version)
	}
	if b.EntityID == "" {
		return Blob{}, errtrack.Validationf("decode blob", "missing entity id")
	}
	return b, nil
}

// #endregion blob
