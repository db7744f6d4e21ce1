package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nkomarek/atelier/internal/util"
)

const (
	secretLength  = 20
	totpDigits    = 6
	totpPeriod    = 30
	totpAlgorithm = "SHA1"
	totpIssuer    = "Atelier"

	base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"
)

// DecodeSecret decodes a Base32 shared secret into raw key bytes. Decoding
// is deliberately lenient for compatibility with already-enrolled secrets:
// input is case-insensitive, padding is stripped, and symbols outside the
// RFC 4648 alphabet are skipped. Trailing bits that do not fill a whole
// byte are discarded.
func DecodeSecret(text string) []byte {
	var out []byte
	var acc, bits uint
	for _, r := range strings.ToUpper(text) {
		idx := strings.IndexRune(base32Alphabet, r)
		if idx < 0 {
			continue
		}
		acc = acc<<5 | uint(idx)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(acc>>bits))
		}
	}
	return out
}

// GenerateSecret draws 20 cryptographically random bytes and maps each byte
// modulo 32 into the Base32 alphabet, yielding a 20-symbol secret.
//
// This is not standard 5-bit-group Base32 packing: each symbol carries
// 5 bits of entropy from an 8-bit draw. The mapping is preserved exactly
// for compatibility with secrets already enrolled in authenticator apps.
func GenerateSecret() (string, error) {
	raw, err := util.RandomBytes(secretLength)
	if err != nil {
		return "", fmt.Errorf("generating totp secret: %w", err)
	}
	var sb strings.Builder
	for _, b := range raw {
		sb.WriteByte(base32Alphabet[int(b)%32])
	}
	return sb.String(), nil
}

// Code returns the 6-digit TOTP code for the given raw secret at the given
// time, per RFC 4226 / RFC 6238 with a 30-second step.
func Code(secret []byte, at time.Time) string {
	return codeAt(secret, at, 0)
}

func codeAt(secret []byte, at time.Time, counterOffset int) string {
	counter := uint64(at.Unix()/totpPeriod + int64(counterOffset))
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	binCode := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)
	return fmt.Sprintf("%0*d", totpDigits, binCode%1000000)
}

// VerifyCode reports whether the submitted code matches the current or the
// immediately preceding 30-second window, tolerating clock drift of up to
// one step behind. Codes from future windows are never accepted. An empty
// secret fails closed.
func VerifyCode(submitted string, secret []byte, now time.Time) bool {
	submitted = normalizeCode(submitted)
	if len(secret) == 0 || !validCodeFormat(submitted) {
		return false
	}
	for _, offset := range []int{0, -1} {
		expected := codeAt(secret, now, offset)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(submitted)) == 1 {
			return true
		}
	}
	return false
}

func normalizeCode(code string) string {
	return strings.TrimSpace(strings.ReplaceAll(code, " ", ""))
}

func validCodeFormat(code string) bool {
	if len(code) != totpDigits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// OTPAuthURL builds the otpauth:// enrollment payload for a secret, suitable
// for rendering as a QR code.
func OTPAuthURL(secret, accountLabel string) string {
	label := url.PathEscape(totpIssuer + ":" + accountLabel)
	values := url.Values{}
	values.Set("secret", secret)
	values.Set("issuer", totpIssuer)
	values.Set("algorithm", totpAlgorithm)
	values.Set("digits", strconv.Itoa(totpDigits))
	values.Set("period", strconv.Itoa(totpPeriod))
	return "otpauth://totp/" + label + "?" + values.Encode()
}
