package model

import (
	"errors"
	"testing"
)

func TestPrincipalKnownEncodings(t *testing.T) {
	testCases := []struct {
		name string
		body []byte
		want Principal
	}{
		{name: "management", body: []byte{}, want: "aaaaa-aa"},
		{name: "anonymous", body: []byte{0x04}, want: "2vxsx-fae"},
	}

	for _, tc := range testCases {
		got, err := PrincipalFromBytes(tc.body)
		if err != nil {
			t.Fatalf("%s: encode: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: unexpected text: got %q want %q", tc.name, got, tc.want)
		}
	}

	if Anonymous != "2vxsx-fae" {
		t.Fatalf("unexpected anonymous principal: %q", Anonymous)
	}
}

func TestParsePrincipalRoundTrip(t *testing.T) {
	p := SelfAuthenticating([]byte("alice public key"))

	parsed, err := ParsePrincipal(p.String())
	if err != nil {
		t.Fatalf("parse self-authenticating principal: %v", err)
	}
	if parsed != p {
		t.Fatalf("round trip mismatch: got %q want %q", parsed, p)
	}
	if parsed.IsAnonymous() {
		t.Fatalf("self-authenticating principal must not be anonymous")
	}
}

func TestParsePrincipalRejectsMalformedText(t *testing.T) {
	valid := SelfAuthenticating([]byte("bob")).String()
	corrupted := []byte(valid)
	if corrupted[0] == 'a' {
		corrupted[0] = 'b'
	} else {
		corrupted[0] = 'a'
	}

	testCases := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "garbage", text: "not a principal!"},
		{name: "bad checksum", text: string(corrupted)},
		{name: "missing dashes", text: "2vxsxfae"},
		{name: "upper case", text: "2VXSX-FAE"},
	}

	for _, tc := range testCases {
		_, err := ParsePrincipal(tc.text)
		if !errors.Is(err, ErrInvalidPrincipal) {
			t.Fatalf("%s: expected ErrInvalidPrincipal, got %v", tc.name, err)
		}
	}
}

func TestPrincipalShort(t *testing.T) {
	p := SelfAuthenticating([]byte("carol"))
	if got := p.Short(); len(got) != 8 || got != p.String()[:8] {
		t.Fatalf("unexpected short form: %q", got)
	}
	if got := Principal("abc").Short(); got != "abc" {
		t.Fatalf("unexpected short form for short text: %q", got)
	}
}
