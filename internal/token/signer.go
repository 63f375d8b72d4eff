package token

import (
	"fmt"
	"strconv"
	"time"

	rtctokenbuilder "github.com/AgoraIO-Community/go-tokenbuilder/rtctokenbuilder"
)

// Signer produces a signed token bound to one (channel, uid) pair. The
// expiry is absolute wall-clock time, truncated to whole seconds.
type Signer interface {
	Sign(channel, uid string, expireAt time.Time) (string, error)
}

// rtcSigner signs tokens with the RTC platform's dynamic-key builder. Every
// token carries the publisher role: all participants may send and receive
// media, there is no receive-only tier.
type rtcSigner struct {
	appID          string
	appCertificate string
}

// NewSigner returns a Signer backed by the platform token builder. The
// certificate never leaves this struct.
func NewSigner(appID, appCertificate string) Signer {
	return &rtcSigner{appID: appID, appCertificate: appCertificate}
}

func (s *rtcSigner) Sign(channel, uid string, expireAt time.Time) (string, error) {
	expireTs := uint32(expireAt.Unix())

	// Numeric identities bind through the uid builder, everything else
	// through the string-account builder. The platform validates both
	// against the value the client joins with.
	if n, err := strconv.ParseUint(uid, 10, 32); err == nil {
		tok, err := rtctokenbuilder.BuildTokenWithUID(
			s.appID, s.appCertificate, channel, uint32(n), rtctokenbuilder.RolePublisher, expireTs)
		if err != nil {
			return "", fmt.Errorf("build token for uid %s: %w", uid, err)
		}
		return tok, nil
	}

	tok, err := rtctokenbuilder.BuildTokenWithUserAccount(
		s.appID, s.appCertificate, channel, uid, rtctokenbuilder.RolePublisher, expireTs)
	if err != nil {
		return "", fmt.Errorf("build token for account %s: %w", uid, err)
	}
	return tok, nil
}
