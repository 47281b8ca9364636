package landing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/buildboard/attribution"
	"github.com/hazyhaar/buildboard/form"
	"github.com/hazyhaar/buildboard/gateway"
	"github.com/hazyhaar/buildboard/navigator"
	"github.com/hazyhaar/buildboard/notify"
	"github.com/hazyhaar/buildboard/schedule"
	"github.com/hazyhaar/buildboard/sections"
)

type stubGateway struct {
	mu    sync.Mutex
	attrs []attribution.Context
	out   gateway.Outcome
}

func (g *stubGateway) Submit(_ context.Context, _ string, _ map[string]any, attr attribution.Context) gateway.Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attrs = append(g.attrs, attr)
	return g.out
}

type tracked struct {
	mu     sync.Mutex
	events []string
	params []map[string]string
}

func (t *tracked) Track(event string, params map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
	t.params = append(t.params, params)
}

func mount(t *testing.T, location string, gw gateway.Submitter) (*Page, *schedule.Manual, *[]float64, *tracked) {
	t.Helper()
	clock := schedule.NewManual()
	tr := &tracked{}
	var ys []float64
	p := New(location, gw, navigator.ScrollFunc(func(y float64, _ bool) { ys = append(ys, y) }),
		WithScheduler(clock), WithTracker(tr))
	t.Cleanup(p.Close)
	return p, clock, &ys, tr
}

func ok() gateway.Outcome {
	return gateway.Outcome{Kind: gateway.Success, ID: "65f0c0ffee0000000000abcd"}
}

func TestNew_PrefillsValidRole(t *testing.T) {
	p, _, _, _ := mount(t, "https://buildboard.app/?role=Shop&utm_source=ig", &stubGateway{})
	assert.Equal(t, "Shop", p.Waitlist.State().Values[form.FieldRole])
	require.NotNil(t, p.Attribution.UTMSource)
	assert.Equal(t, "ig", *p.Attribution.UTMSource)
}

func TestNew_IgnoresUnknownRole(t *testing.T) {
	p, _, _, _ := mount(t, "https://buildboard.app/?role=Admin", &stubGateway{})
	assert.Equal(t, "", p.Waitlist.State().Values[form.FieldRole])
}

func TestForms_ShareAttributionSnapshot(t *testing.T) {
	gw := &stubGateway{out: ok()}
	p, _, _, _ := mount(t, "https://buildboard.app/?utm_campaign=launch", gw)

	p.Footer.SetField(form.FieldEmail, "a@b.co")
	_, err := p.Footer.Submit(context.Background())
	require.NoError(t, err)

	p.Waitlist.SetField(form.FieldName, "Ann")
	p.Waitlist.SetField(form.FieldEmail, "ann@b.co")
	p.Waitlist.SetField(form.FieldRole, "Brand")
	_, err = p.Waitlist.Submit(context.Background())
	require.NoError(t, err)

	require.Len(t, gw.attrs, 2)
	assert.Equal(t, p.Attribution, gw.attrs[0])
	assert.Equal(t, p.Attribution, gw.attrs[1])
}

func TestWaitlistSuccess_ShowsModalUntilDismissed(t *testing.T) {
	p, clock, _, _ := mount(t, "", &stubGateway{out: ok()})
	p.Waitlist.SetField(form.FieldName, "Ann")
	p.Waitlist.SetField(form.FieldEmail, "ann@b.co")
	p.Waitlist.SetField(form.FieldRole, "Builder")

	_, err := p.Waitlist.Submit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, p.Notify.State().Modal)
	assert.Equal(t, WaitlistModal.Title, p.Notify.State().Modal.Title)

	clock.Advance(time.Minute)
	require.NotNil(t, p.Notify.State().Modal)
	assert.ErrorIs(t, p.Notify.Dismiss("share"), notify.ErrUnknownAction)
	require.NoError(t, p.Notify.Dismiss("refer"))
	assert.Nil(t, p.Notify.State().Modal)
}

func TestFooterSuccess_ShowsModalUntilDismissed(t *testing.T) {
	p, clock, _, _ := mount(t, "", &stubGateway{out: ok()})
	p.Footer.SetField(form.FieldEmail, "a@b.co")
	out, err := p.Footer.Submit(context.Background())
	require.NoError(t, err)
	require.True(t, out.OK())

	st := p.Notify.State()
	assert.Nil(t, st.Toast)
	require.NotNil(t, st.Modal)
	assert.Equal(t, FooterModal.Title, st.Modal.Title)

	clock.Advance(notify.ToastDuration * 10)
	require.NotNil(t, p.Notify.State().Modal, "success confirmation must be acknowledged")
	assert.Equal(t, "a@b.co", p.Footer.State().Values[form.FieldEmail])

	require.NoError(t, p.Notify.Dismiss("close"))
	assert.Nil(t, p.Notify.State().Modal)
}

func TestReferralRejected_ToastsDetail(t *testing.T) {
	detail := "referral_type must be 'Shop' or 'Builder'"
	p, _, _, _ := mount(t, "", &stubGateway{out: gateway.Outcome{Kind: gateway.ServerRejected, Status: 422, Detail: detail}})
	p.Referral.SetField(form.FieldReferrer, "Ann")
	p.Referral.SetField(form.FieldRefEmail, "ann@b.co")
	p.Referral.SetField(form.FieldRefType, "Shop")
	p.Referral.SetField(form.FieldRefName, "Speed Shop")

	out, err := p.Referral.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gateway.ServerRejected, out.Kind)
	require.NotNil(t, p.Notify.State().Toast)
	assert.Equal(t, detail, p.Notify.State().Toast.Message)
	assert.Nil(t, p.Notify.State().Modal)
	assert.Equal(t, "Speed Shop", p.Referral.State().Values[form.FieldRefName])
}

func TestGoTo_TracksAndRetries(t *testing.T) {
	p, clock, ys, tr := mount(t, "", &stubGateway{})
	assert.False(t, p.NavEnabled())

	p.GoTo(sections.Signup)
	assert.Empty(t, *ys)
	p.Sections.Report(sections.Signup, 2000)
	require.Len(t, *ys, 1)
	assert.Equal(t, 2000-navigator.HeaderHeight, (*ys)[0])

	clock.Advance(navigator.RetryDelay)
	assert.Len(t, *ys, 1)

	assert.Equal(t, []string{"nav_click"}, tr.events)
	assert.Equal(t, "signup", tr.params[0]["section"])
}

func TestNavEnabled_FlipsWhenAllReported(t *testing.T) {
	p, _, _, _ := mount(t, "", &stubGateway{})
	for i, id := range sections.All {
		assert.False(t, p.NavEnabled(), "before %s", id)
		p.Sections.Report(id, float64(i*600))
	}
	assert.True(t, p.NavEnabled())

	p.Resize()
	assert.False(t, p.NavEnabled())
}

func TestClose_UnmountsForms(t *testing.T) {
	clock := schedule.NewManual()
	p := New("", &stubGateway{out: ok()}, navigator.ScrollFunc(func(float64, bool) {}), WithScheduler(clock))
	p.Close()
	_, err := p.Footer.Submit(context.Background())
	assert.ErrorIs(t, err, form.ErrUnmounted)
}
