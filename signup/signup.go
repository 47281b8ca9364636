// Package signup holds the wire vocabulary shared by the landing-page
// client and the persistence API: request bodies, the closed value sets,
// and the email shape check.
package signup

import (
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

// Endpoint paths, relative to the API base.
const (
	PathWaitlist  = "/api/waitlist"
	PathReferrals = "/api/referrals"
)

// Roles accepted on the waitlist, in display order.
var Roles = []string{"Enthusiast", "Builder", "Shop", "Brand", "Subscriber"}

// ReferralTypes accepted on a referral.
var ReferralTypes = []string{"Shop", "Builder"}

// RoleSubscriber is the role used by the footer micro-form.
const RoleSubscriber = "Subscriber"

// IsRole reports whether v is one of Roles.
func IsRole(v string) bool { return oneOf(v, Roles) }

// IsReferralType reports whether v is one of ReferralTypes.
func IsReferralType(v string) bool { return oneOf(v, ReferralTypes) }

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}

var (
	localPart  = regexp.MustCompile(`^[A-Za-z0-9.!#$%&'*+/=?^_{|}~-]+$`)
	asciiLabel = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?$`)
)

// IsEmail checks the local@domain.tld shape. Internationalised domains are
// converted to their ASCII form first, so "ana@bücher.de" passes.
func IsEmail(s string) bool {
	s = strings.TrimSpace(s)
	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return false
	}
	local, domain := s[:at], s[at+1:]
	if len(local) > 64 || !localPart.MatchString(local) {
		return false
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(local, "..") {
		return false
	}
	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return false
	}
	labels := strings.Split(ascii, ".")
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if !asciiLabel.MatchString(l) {
			return false
		}
	}
	tld := labels[len(labels)-1]
	return len(tld) >= 2
}

// WaitlistRequest is the body of POST /api/waitlist.
type WaitlistRequest struct {
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Role        string  `json:"role"`
	SourceURL   *string `json:"source_url,omitempty"`
	UTMSource   *string `json:"utm_source,omitempty"`
	UTMCampaign *string `json:"utm_campaign,omitempty"`
	UTMMedium   *string `json:"utm_medium,omitempty"`
}

// ReferralRequest is the body of POST /api/referrals.
type ReferralRequest struct {
	ReferrerName    string  `json:"referrer_name"`
	ReferrerEmail   string  `json:"referrer_email"`
	ReferralType    string  `json:"referral_type"`
	ReferralName    string  `json:"referral_name"`
	ReferralContact *string `json:"referral_contact,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	SourceURL       *string `json:"source_url,omitempty"`
	UTMSource       *string `json:"utm_source,omitempty"`
	UTMCampaign     *string `json:"utm_campaign,omitempty"`
	UTMMedium       *string `json:"utm_medium,omitempty"`
}

// Ack is the part of a created-record response the client relies on.
type Ack struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}
