package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the membership state machine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	InvitesCreatedTotal     prometheus.Counter
	InviteRedemptionsTotal  *prometheus.CounterVec
	InvitesRevokedTotal     prometheus.Counter
	MembersRemovedTotal     *prometheus.CounterVec
	EntitlementDenialsTotal *prometheus.CounterVec
	SignupsTotal            *prometheus.CounterVec
	ServerStartTime         prometheus.Gauge
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		InvitesCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "listshub_invites_created_total",
			Help: "Total number of family invites created.",
		}),

		InviteRedemptionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listshub_invite_redemptions_total",
			Help: "Invite redemption attempts by result.",
		}, []string{"result"}),

		InvitesRevokedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "listshub_invites_revoked_total",
			Help: "Total number of invites revoked by family owners.",
		}),

		MembersRemovedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listshub_members_removed_total",
			Help: "Members removed from a family, by what happened to the removed user.",
		}, []string{"outcome"}),

		EntitlementDenialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listshub_entitlement_denials_total",
			Help: "Actions denied by the plan entitlement checks.",
		}, []string{"action"}),

		SignupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listshub_signups_total",
			Help: "Accounts created, by signup path.",
		}, []string{"path"}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "listshub_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.InvitesCreatedTotal,
		m.InviteRedemptionsTotal,
		m.InvitesRevokedTotal,
		m.MembersRemovedTotal,
		m.EntitlementDenialsTotal,
		m.SignupsTotal,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RegisterDBPoolCollector registers a collector for database pool stats.
func (m *Metrics) RegisterDBPoolCollector(statFunc DBPoolStatFunc) {
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}

func (m *Metrics) IncInviteCreated() {
	if m == nil {
		return
	}
	m.InvitesCreatedTotal.Inc()
}

// IncRedemption records a redemption attempt. result is "ok" or a short
// failure class such as "expired" or "conflict".
func (m *Metrics) IncRedemption(result string) {
	if m == nil {
		return
	}
	m.InviteRedemptionsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncInviteRevoked() {
	if m == nil {
		return
	}
	m.InvitesRevokedTotal.Inc()
}

func (m *Metrics) IncMemberRemoved(outcome string) {
	if m == nil {
		return
	}
	m.MembersRemovedTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncEntitlementDenial(action string) {
	if m == nil {
		return
	}
	m.EntitlementDenialsTotal.WithLabelValues(action).Inc()
}

func (m *Metrics) IncSignup(path string) {
	if m == nil {
		return
	}
	m.SignupsTotal.WithLabelValues(path).Inc()
}
