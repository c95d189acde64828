package audit

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/gatepass/gatepass/internal/core"
)

const (
	DefaultFingerprintType = "default"
	OAuth2FingerprintType  = "oauth2"
	SessionFingerprintType = "session"
)

var fingerprintRegistry = map[string]core.Fingerprinter{
	DefaultFingerprintType: func(_ string) string {
		return "(n/a)"
	},
}

func RegisterFingerprinter(tokenType string, fn core.Fingerprinter) {
	fingerprintRegistry[tokenType] = fn
}

func CalculateFingerprint(tokenType, token string) string {
	fn, ok := fingerprintRegistry[tokenType]
	if !ok {
		fn = fingerprintRegistry[DefaultFingerprintType]
	}
	return fn(token)
}

func init() {
	RegisterFingerprinter(OAuth2FingerprintType, sha256Fingerprint)
	RegisterFingerprinter(SessionFingerprintType, sha256Fingerprint)
}

// sha256Fingerprint is non-reversible, so fingerprints are safe to log and
// still allow correlating a token across audit entries.
func sha256Fingerprint(token string) string {
	hash := sha256.Sum256([]byte(token))
	return base64.StdEncoding.EncodeToString(hash[:])
}
