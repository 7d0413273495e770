package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const voiceprintDigestLen = sha256.Size * 2

// HashVoiceprint returns the lowercase hex SHA-256 digest of the raw voiceprint.
func HashVoiceprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// IsVoiceprintDigest reports whether s already has the shape of a digest:
// 64 characters, hex alphabet only. Case is ignored.
func IsVoiceprintDigest(s string) bool {
	if len(s) != voiceprintDigestLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// NormalizeVoiceprint returns the canonical stored form. Digests are lowercased,
// anything else is hashed. Applying it twice yields the same value.
func NormalizeVoiceprint(s string) string {
	if IsVoiceprintDigest(s) {
		return strings.ToLower(s)
	}
	return HashVoiceprint(s)
}
