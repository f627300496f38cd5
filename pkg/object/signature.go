package object

// CommitSigner signs canonical commit payload bytes and returns an encoded
// signature string to be stored in CommitObj.Signature.
type CommitSigner func(payload []byte) (string, error)

// CommitVerifier checks an encoded signature against a payload.
type CommitVerifier func(payload []byte, signature string) error

// CommitSigningPayload returns the canonical bytes that are signed for a
// commit: the serialized commit with the signature field cleared.
func CommitSigningPayload(c *CommitObj) []byte {
	if c == nil {
		return nil
	}
	unsigned := *c
	unsigned.Signature = ""
	return MarshalCommit(&unsigned)
}
