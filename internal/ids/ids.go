package ids

import (
	"crypto/rand"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Token returns an unguessable random identifier of length n. Unlike New,
// tokens carry no timestamp component and may be handed out as bearer
// credentials (session ids, verification tokens).
func Token(n int) string {
	return randomString(n, tokenAlphabet)
}

// OTP returns a numeric one-time code of length n.
func OTP(n int) string {
	return randomString(n, "0123456789")
}

// randomString draws uniformly from the alphabet via rejection sampling:
// bytes above the largest multiple of the alphabet size are discarded, never
// folded in with a modulo.
func randomString(n int, alphabet string) string {
	if n <= 0 {
		return ""
	}
	limit := byte(256 - 256%len(alphabet))
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			panic("ids: crypto/rand unavailable: " + err.Error())
		}
		for _, b := range buf {
			if b >= limit && limit != 0 {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}
