package utils

import (
    "encoding/hex"

    "golang.org/x/crypto/blake2b"
)

// Fingerprint returns a short, stable digest of a holder token suitable for
// logs and metrics keys.  Raw holder tokens are never written to logs.
func Fingerprint(token string) string {
    if token == "" {
        return ""
    }
    sum := blake2b.Sum256([]byte(token))
    return hex.EncodeToString(sum[:6])
}
