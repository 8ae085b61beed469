package dist

import (
	"crypto/md5" //nolint:gosec // protocol-mandated digest, not used for security-sensitive hashing
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strconv"
)

// maxChallenge bounds the generated challenge to a 31-bit non-negative
// integer, as spec.md §3 requires.
var maxChallenge = big.NewInt(1 << 31)

// NewChallenge returns a uniformly random integer in [0, 2^31). The
// original source seeds this from a non-cryptographic PRNG
// (random.random()); spec.md §9 flags the challenge's unpredictability
// as the thing that thwarts replay, so this implementation draws from
// crypto/rand instead.
func NewChallenge() (uint32, error) {
	n, err := rand.Int(rand.Reader, maxChallenge)
	if err != nil {
		return 0, fmt.Errorf("dist: generate challenge: %w", err)
	}
	return uint32(n.Uint64()), nil
}

// Digest computes MD5(ascii(cookie) ++ ascii(decimal(challenge))), the
// authentication digest defined in spec.md §4.3.
func Digest(challenge uint32, cookie string) [16]byte {
	h := md5.New() //nolint:gosec
	h.Write([]byte(cookie))
	h.Write([]byte(strconv.FormatUint(uint64(challenge), 10)))
	var out [16]byte
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyDigest reports whether got equals the digest expected for
// (challenge, cookie), using a constant-time comparison as spec.md §4.3
// recommends over the source's direct byte comparison.
func VerifyDigest(got [16]byte, challenge uint32, cookie string) bool {
	want := Digest(challenge, cookie)
	return subtle.ConstantTimeCompare(got[:], want[:]) == 1
}
