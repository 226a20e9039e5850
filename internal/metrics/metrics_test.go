package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncInviteCreated()
		m.IncRedemption("ok")
		m.IncInviteRevoked()
		m.IncMemberRemoved("provisioned")
		m.IncEntitlementDenial("create_list")
		m.IncSignup("titular")
	})
}

func TestCounters(t *testing.T) {
	m := New()

	m.IncInviteCreated()
	m.IncInviteCreated()
	m.IncRedemption("ok")
	m.IncRedemption("expired")
	m.IncRedemption("ok")
	m.IncMemberRemoved("reassigned")

	body := scrape(t, m)
	assert.Contains(t, body, "listshub_invites_created_total 2")
	assert.Contains(t, body, `listshub_invite_redemptions_total{result="ok"} 2`)
	assert.Contains(t, body, `listshub_invite_redemptions_total{result="expired"} 1`)
	assert.Contains(t, body, `listshub_members_removed_total{outcome="reassigned"} 1`)
}

func TestHandlerExposesDBPool(t *testing.T) {
	m := New()
	m.IncSignup("invite")
	m.RegisterDBPoolCollector(func() (int32, int32, int32) { return 4, 3, 1 })

	body := scrape(t, m)
	assert.Contains(t, body, `listshub_signups_total{path="invite"} 1`)
	assert.Contains(t, body, "listshub_db_pool_total_conns 4")
	assert.Contains(t, body, "listshub_db_pool_acquired_conns 1")
}
