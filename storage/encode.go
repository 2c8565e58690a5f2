package storage

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode produces deterministic CBOR so that equal artifacts are stored as
// equal bytes.
var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("storage: cbor encoding mode: %v", err))
	}
	return em
}()

// EncodeArtifact encodes an artifact into CBOR format.
func EncodeArtifact(a any) ([]byte, error) {
	return encMode.Marshal(a)
}

// DecodeArtifact decodes a CBOR-encoded artifact into out.
func DecodeArtifact(data []byte, out any) error {
	return cbor.Unmarshal(data, out)
}
