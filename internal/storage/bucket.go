package storage

import (
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/crypto/blake2s"
)

// S3 bucket name constraints. Names longer than the maximum are shortened
// deterministically so repeated lookups always land on the same bucket.
const (
	bucketMinLength = 3
	bucketMaxLength = 63
	bucketHashLen   = 10
	bucketPrefixMax = 52
)

var (
	invalidBucketChars = regexp.MustCompile(`[^a-z0-9.-]`)
	dashRuns           = regexp.MustCompile(`-+`)
)

// BucketName derives the bucket for an investigation from the configured
// prefix. The result is a valid S3 bucket name and is stable for a given
// prefix and investigation id.
func BucketName(prefix, investigationID string) string {
	raw := strings.ToLower(prefix + "-" + investigationID)
	cleaned := invalidBucketChars.ReplaceAllString(raw, "-")
	cleaned = dashRuns.ReplaceAllString(cleaned, "-")
	cleaned = strings.Trim(cleaned, "-.")

	if len(cleaned) < bucketMinLength {
		cleaned = prefix + "-inv"
	}
	if len(cleaned) > bucketMaxLength {
		digest := blake2s.Sum256([]byte(cleaned))
		head := strings.TrimRight(cleaned[:bucketPrefixMax], "-")
		cleaned = head + "-" + hex.EncodeToString(digest[:])[:bucketHashLen]
	}
	return cleaned
}
