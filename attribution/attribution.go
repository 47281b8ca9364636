// Package attribution derives the UTM attribution snapshot of a page load.
//
// The snapshot is computed once from the location the page was opened with
// and attached verbatim to every outbound write of the session.
package attribution

import (
	"net/url"
)

// FallbackSourceURL identifies submissions made from an environment that has
// no location bar (native shells, the CLI).
const FallbackSourceURL = "app://buildboard"

// Query keys read from the location.
const (
	KeyUTMSource   = "utm_source"
	KeyUTMCampaign = "utm_campaign"
	KeyUTMMedium   = "utm_medium"
	KeyRole        = "role"
)

// Context is the attribution snapshot. Nil fields are unset and must be
// omitted from payloads, not sent as empty strings.
type Context struct {
	SourceURL   string
	UTMSource   *string
	UTMCampaign *string
	UTMMedium   *string
	PrefillRole *string
}

// Resolve builds a Context from a location string. A location that cannot
// be parsed still yields its raw text as SourceURL with every UTM field
// unset. An empty location yields FallbackSourceURL.
func Resolve(location string) Context {
	if location == "" {
		return Context{SourceURL: FallbackSourceURL}
	}
	c := Context{SourceURL: location}
	u, err := url.Parse(location)
	if err != nil {
		return c
	}
	q := u.Query()
	c.UTMSource = param(q, KeyUTMSource)
	c.UTMCampaign = param(q, KeyUTMCampaign)
	c.UTMMedium = param(q, KeyUTMMedium)
	c.PrefillRole = param(q, KeyRole)
	return c
}

// param returns nil for a key that is absent. A key present with an empty
// value ("?utm_source=") counts as absent as well.
func param(q url.Values, key string) *string {
	if !q.Has(key) {
		return nil
	}
	v := q.Get(key)
	if v == "" {
		return nil
	}
	return &v
}

// Fields returns the outbound attribution fields: source_url always, the
// UTM keys only when set. prefill_role is local to the page and never sent.
func (c Context) Fields() map[string]string {
	f := map[string]string{"source_url": c.SourceURL}
	if c.UTMSource != nil {
		f[KeyUTMSource] = *c.UTMSource
	}
	if c.UTMCampaign != nil {
		f[KeyUTMCampaign] = *c.UTMCampaign
	}
	if c.UTMMedium != nil {
		f[KeyUTMMedium] = *c.UTMMedium
	}
	return f
}

// Role returns the prefilled role, or "" when unset.
func (c Context) Role() string {
	if c.PrefillRole == nil {
		return ""
	}
	return *c.PrefillRole
}
