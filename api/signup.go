package api

import (
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"strings"

	"github.com/hazyhaar/buildboard/horosafe"
	"github.com/hazyhaar/buildboard/observability"
	"github.com/hazyhaar/buildboard/shield"
	"github.com/hazyhaar/buildboard/signup"
	"github.com/hazyhaar/buildboard/store"
)

// Free-text limits, in runes.
const (
	maxName  = 200
	maxEmail = 320
	maxURL   = 2048
	maxNotes = 2000
)

// MsgReferralType is the 422 detail for an out-of-set referral_type.
const MsgReferralType = "referral_type must be 'Shop' or 'Builder'"

// ValidationError is one entry of a 422 detail list.
type ValidationError struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

func missing(field string) ValidationError {
	return ValidationError{Loc: []any{"body", field}, Msg: "Field required", Type: "missing"}
}

func writeDetail(w http.ResponseWriter, detail any) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": detail})
}

// body is a decoded JSON object with typed accessors that collect
// validation errors instead of failing fast.
type body struct {
	raw  map[string]json.RawMessage
	errs []ValidationError
}

func decodeBody(r *http.Request) (*body, bool) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil || raw == nil {
		return nil, false
	}
	return &body{raw: raw}, true
}

// required returns the string at field, recording an error when it is
// absent or not a string.
func (b *body) required(field string) string {
	v, ok := b.raw[field]
	if !ok {
		b.errs = append(b.errs, missing(field))
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		b.errs = append(b.errs, ValidationError{Loc: []any{"body", field}, Msg: "Input should be a valid string", Type: "string_type"})
		return ""
	}
	return s
}

// optional returns nil for an absent or null field.
func (b *body) optional(field string) *string {
	v, ok := b.raw[field]
	if !ok || string(v) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		b.errs = append(b.errs, ValidationError{Loc: []any{"body", field}, Msg: "Input should be a valid string", Type: "string_type"})
		return nil
	}
	return &s
}

func (b *body) email(field string) string {
	n := len(b.errs)
	s := strings.TrimSpace(b.required(field))
	if len(b.errs) > n {
		return ""
	}
	if !signup.IsEmail(s) {
		b.errs = append(b.errs, ValidationError{
			Loc:  []any{"body", field},
			Msg:  "value is not a valid email address",
			Type: "value_error",
		})
		return ""
	}
	local, domain, _ := strings.Cut(s, "@")
	return local + "@" + strings.ToLower(domain)
}

func (b *body) attribution(s *Server) store.Attribution {
	return store.Attribution{
		SourceURL:   s.cleanOpt(b.optional("source_url"), maxURL),
		UTMSource:   s.cleanOpt(b.optional("utm_source"), maxName),
		UTMCampaign: s.cleanOpt(b.optional("utm_campaign"), maxName),
		UTMMedium:   s.cleanOpt(b.optional("utm_medium"), maxName),
	}
}

// maxCleanPasses bounds how many layers of entity encoding clean peels.
const maxCleanPasses = 4

// clean strips markup from user text and caps its length. The result is
// plain text: entities are decoded, and decoding is repeated until it no
// longer reveals markup, so "&lt;script&gt;" cannot turn into a tag.
func (s *Server) clean(v string, max int) string {
	text := v
	for range maxCleanPasses {
		next := html.UnescapeString(s.policy.Sanitize(text))
		if next == text {
			return horosafe.Truncate(strings.TrimSpace(text), max)
		}
		text = next
	}
	// Still unstable: keep the escaped form.
	return horosafe.Truncate(strings.TrimSpace(s.policy.Sanitize(text)), max)
}

func (s *Server) cleanOpt(v *string, max int) *string {
	if v == nil {
		return nil
	}
	c := s.clean(*v, max)
	return &c
}

func (s *Server) handleWaitlist(w http.ResponseWriter, r *http.Request) {
	log := shield.GetLogger(r.Context())
	b, ok := decodeBody(r)
	if !ok {
		s.metrics.Submission("waitlist", "invalid")
		writeDetail(w, []ValidationError{{Loc: []any{"body"}, Msg: "JSON decode error", Type: "json_invalid"}})
		return
	}
	e := store.WaitlistEntry{
		Name:  s.clean(b.required("name"), maxName),
		Email: horosafe.Truncate(b.email("email"), maxEmail),
		Role:  s.clean(b.required("role"), maxName),
	}
	e.Attribution = b.attribution(s)
	if len(b.errs) > 0 {
		s.metrics.Submission("waitlist", "invalid")
		writeDetail(w, b.errs)
		return
	}

	saved, err := s.store.CreateWaitlist(r.Context(), e)
	if err != nil {
		s.metrics.Submission("waitlist", "error")
		log.Error("waitlist insert", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	s.metrics.Submission("waitlist", "created")
	s.events.LogEvent(r.Context(), observability.BusinessEvent{
		EventType:  observability.EventWaitlistJoined,
		EntityType: "waitlist",
		EntityID:   saved.ID,
		Action:     "create",
		Details:    attributionDetails(map[string]string{"role": saved.Role}, saved.Attribution),
		Success:    true,
	})
	log.Info("waitlist joined", "id", saved.ID, "role", saved.Role)
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleReferral(w http.ResponseWriter, r *http.Request) {
	log := shield.GetLogger(r.Context())
	b, ok := decodeBody(r)
	if !ok {
		s.metrics.Submission("referrals", "invalid")
		writeDetail(w, []ValidationError{{Loc: []any{"body"}, Msg: "JSON decode error", Type: "json_invalid"}})
		return
	}
	ref := store.Referral{
		ReferrerName:    s.clean(b.required("referrer_name"), maxName),
		ReferrerEmail:   horosafe.Truncate(b.email("referrer_email"), maxEmail),
		ReferralType:    b.required("referral_type"),
		ReferralName:    s.clean(b.required("referral_name"), maxName),
		ReferralContact: s.cleanOpt(b.optional("referral_contact"), maxURL),
		Notes:           s.cleanOpt(b.optional("notes"), maxNotes),
	}
	ref.Attribution = b.attribution(s)
	if len(b.errs) > 0 {
		s.metrics.Submission("referrals", "invalid")
		writeDetail(w, b.errs)
		return
	}
	if !signup.IsReferralType(ref.ReferralType) {
		s.metrics.Submission("referrals", "rejected")
		writeDetail(w, MsgReferralType)
		return
	}

	saved, err := s.store.CreateReferral(r.Context(), ref)
	if err != nil {
		s.metrics.Submission("referrals", "error")
		log.Error("referral insert", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	s.metrics.Submission("referrals", "created")
	s.events.LogEvent(r.Context(), observability.BusinessEvent{
		EventType:  observability.EventReferralCreated,
		EntityType: "referral",
		EntityID:   saved.ID,
		Action:     "create",
		Details:    attributionDetails(map[string]string{"referral_type": saved.ReferralType}, saved.Attribution),
		Success:    true,
	})
	log.Info("referral created", "id", saved.ID, "type", saved.ReferralType)
	writeJSON(w, http.StatusOK, saved)
}

func attributionDetails(d map[string]string, a store.Attribution) map[string]string {
	for k, v := range map[string]*string{
		"utm_source":   a.UTMSource,
		"utm_campaign": a.UTMCampaign,
		"utm_medium":   a.UTMMedium,
	} {
		if v != nil {
			d[k] = *v
		}
	}
	return d
}
