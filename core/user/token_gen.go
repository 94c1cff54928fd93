package user

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/kipimo/core"
)

var (
	salt    = []byte("kipimo.core.user.token_gen")
	NowFunc = time.Now // mockable

	// errors
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")

	b32 = base32.StdEncoding.WithPadding(base32.NoPadding)
)

// EncodeUID base64 encodes given User ID
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

// decodeUID base64 decodes given UID
func decodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}

// MakeToken generates a password reset token for a given User.
// The token is bound to the user's organization, email & password, and is invalidated once the user
// logs in, changes their password or is deactivated.
func MakeToken(usr User) (string, error) {
	return makeTokenAt(usr, hoursSinceEpoch(NowFunc()))
}

// verifyToken checks that a password reset token for a given User is valid.
func verifyToken(usr User, token string) error {
	if token == "" || !usr.IsActive {
		return errInvalidToken
	}

	stamp, _, ok := cutToken(token)
	if !ok {
		return errInvalidToken
	}
	data, err := b32.DecodeString(stamp)
	if err != nil {
		return errInvalidToken
	}
	issuedAt, err := strconv.Atoi(string(data))
	if err != nil {
		return errInvalidToken
	}

	want, err := makeTokenAt(usr, issuedAt)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(token)) == 0 {
		return errInvalidToken
	}

	if hoursSinceEpoch(NowFunc())-issuedAt > int(core.Conf.PasswordResetTimeoutDelta/time.Hour) {
		return errTokenExpired
	}
	return nil
}

// cutToken splits token into its timestamp & signature.
func cutToken(token string) (stamp, sig string, ok bool) {
	i := strings.IndexByte(token, '-')
	if i <= 0 || i == len(token)-1 {
		return "", "", false
	}
	return token[:i], token[i+1:], true
}

func makeTokenAt(usr User, issuedAt int) (string, error) {
	sig, err := sign(tokenPayload(usr, issuedAt))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", b32.EncodeToString([]byte(strconv.Itoa(issuedAt))), sig), nil
}

// hoursSinceEpoch is the token clock: whole hours since 2020-01-01 UTC, rounded up.
func hoursSinceEpoch(t time.Time) int {
	epoch := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(epoch).Hours()))
}

func sign(val []byte) (string, error) {
	key := sha256.Sum256(append(salt, core.Conf.SecretKey...))
	h := hmac.New(sha256.New, key[:])
	if _, err := h.Write(val); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

// tokenPayload is the signed state of usr; fields are NUL separated.
func tokenPayload(usr User, issuedAt int) []byte {
	var val bytes.Buffer
	for _, field := range []string{usr.OrgID, usr.ID, usr.Email, string(usr.PasswordHash)} {
		val.WriteString(field)
		val.WriteByte(0)
	}
	if usr.LastLogin.Valid {
		val.WriteString(usr.LastLogin.Time.UTC().Format(time.RFC3339))
	}
	val.WriteByte(0)
	val.WriteString(strconv.Itoa(issuedAt))
	return val.Bytes()
}
