package attest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/jmerrifield20/NexusXID/internal/sigverify"
)

// SignEnvelope serialises p and signs it with key, producing an envelope
// that an Attestor trusting key's public key will accept.
func SignEnvelope(key *btcec.PrivateKey, p Payload) (Envelope, error) {
	msg, err := json.Marshal(p)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload: %w", err)
	}
	sig, _, err := sigverify.SignPersonal(key, msg)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Msg: string(msg), Sig: base64.StdEncoding.EncodeToString(sig)}, nil
}
