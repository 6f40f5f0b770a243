package model

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"
)

const (
	maxPrincipalBytes     = 29
	selfAuthenticatingTag = 0x02
	anonymousTag          = 0x04
	principalGroupSize    = 5
)

var ErrInvalidPrincipal = errors.New("invalid principal")

var principalEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Principal is the canonical textual form of an identity: dash-grouped lowercase
// base32 of a big-endian CRC32 checksum followed by the raw identity bytes.
type Principal string

// Anonymous is the identity of a caller that has not logged in.
var Anonymous = mustPrincipal([]byte{anonymousTag})

func ParsePrincipal(text string) (Principal, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("empty text: %w", ErrInvalidPrincipal)
	}

	raw, err := principalEncoding.DecodeString(strings.ToUpper(strings.ReplaceAll(trimmed, "-", "")))
	if err != nil {
		return "", fmt.Errorf("decode %q: %w", trimmed, ErrInvalidPrincipal)
	}
	if len(raw) < 4 || len(raw)-4 > maxPrincipalBytes {
		return "", fmt.Errorf("length of %q: %w", trimmed, ErrInvalidPrincipal)
	}

	body := raw[4:]
	if binary.BigEndian.Uint32(raw[:4]) != crc32.ChecksumIEEE(body) {
		return "", fmt.Errorf("checksum of %q: %w", trimmed, ErrInvalidPrincipal)
	}

	p, err := PrincipalFromBytes(body)
	if err != nil {
		return "", err
	}
	if string(p) != trimmed {
		return "", fmt.Errorf("non-canonical %q: %w", trimmed, ErrInvalidPrincipal)
	}
	return p, nil
}

func PrincipalFromBytes(body []byte) (Principal, error) {
	if len(body) > maxPrincipalBytes {
		return "", fmt.Errorf("%d bytes: %w", len(body), ErrInvalidPrincipal)
	}

	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf[:4], crc32.ChecksumIEEE(body))
	copy(buf[4:], body)

	encoded := strings.ToLower(principalEncoding.EncodeToString(buf))
	groups := make([]string, 0, len(encoded)/principalGroupSize+1)
	for len(encoded) > principalGroupSize {
		groups = append(groups, encoded[:principalGroupSize])
		encoded = encoded[principalGroupSize:]
	}
	groups = append(groups, encoded)

	return Principal(strings.Join(groups, "-")), nil
}

// SelfAuthenticating derives the identity owned by the holder of publicKey.
func SelfAuthenticating(publicKey []byte) Principal {
	sum := sha256.Sum224(publicKey)
	return mustPrincipal(append(sum[:], selfAuthenticatingTag))
}

func (p Principal) String() string {
	return string(p)
}

// Short is the abbreviated form shown in lists.
func (p Principal) Short() string {
	if len(p) <= 8 {
		return string(p)
	}
	return string(p[:8])
}

func (p Principal) IsZero() bool {
	return p == ""
}

func (p Principal) IsAnonymous() bool {
	return p == Anonymous
}

func ContainsPrincipal(list []Principal, p Principal) bool {
	for _, item := range list {
		if item == p {
			return true
		}
	}
	return false
}

func mustPrincipal(body []byte) Principal {
	p, err := PrincipalFromBytes(body)
	if err != nil {
		panic(err)
	}
	return p
}
