package attest

import "errors"

// Verification failures. Each has a stable wire code so that a remote
// Attestor's errors can be reconstructed by the client.
var (
	ErrMsgDecode = errors.New("attestation payload could not be decoded")
	ErrSigDecode = errors.New("attestation signature could not be decoded")
	ErrVerify    = errors.New("attestation signature verification failed")
	ErrReplay    = errors.New("attestation uuid already used")
)

// Wire codes for the errors above.
const (
	CodeMsgDecode = "msg_decode"
	CodeSigDecode = "sig_decode"
	CodeVerify    = "verify"
	CodeReplay    = "replay"
)

var codes = map[string]error{
	CodeMsgDecode: ErrMsgDecode,
	CodeSigDecode: ErrSigDecode,
	CodeVerify:    ErrVerify,
	CodeReplay:    ErrReplay,
}

// Code returns the wire code for err, or "" if err is not an attestation error.
func Code(err error) string {
	for code, target := range codes {
		if errors.Is(err, target) {
			return code
		}
	}
	return ""
}

// ErrorForCode maps a wire code back to its sentinel error.
func ErrorForCode(code string) (error, bool) {
	err, ok := codes[code]
	return err, ok
}
