package claims

import (
	"strings"
)

const unknownContentIdentity = "unknown"

// BuildClaimKey derives the deduplication key for one object version. The
// content identity is the ETag when present, else the sequencer, else
// "unknown". Surrounding quotes on the ETag are ignored.
func BuildClaimKey(bucket, objectKey, etag, sequencer string) string {
	identity := strings.Trim(strings.TrimSpace(etag), `"`)
	if identity == "" {
		identity = strings.TrimSpace(sequencer)
	}
	if identity == "" {
		identity = unknownContentIdentity
	}
	return "s3://" + bucket + "/" + objectKey + "#" + identity
}
