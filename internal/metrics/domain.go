package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lamgaraproperties/lamgara-web/internal/content"
)

// Result label values for the domain counters.
const (
	ResultOK      = "ok"
	ResultInvalid = "invalid"
	ResultError   = "error"
	ResultLimited = "rate_limited"
)

type domainMetrics struct {
	loginAttempts   *prometheus.CounterVec
	tokenRejections *prometheus.CounterVec
	contentSaves    *prometheus.CounterVec
	contentUpdated  prometheus.Gauge
	contentItems    *prometheus.GaugeVec
	uploadPresigns  *prometheus.CounterVec
}

func newDomainMetrics(f factory) domainMetrics {
	return domainMetrics{
		loginAttempts:   f.counterVec("auth_login_attempts_total", "Admin login attempts by result", "result"),
		tokenRejections: f.counterVec("auth_token_rejections_total", "Protected requests refused, by reason", "reason"),
		contentSaves:    f.counterVec("content_saves_total", "Content document saves by result", "result"),
		contentUpdated:  f.gauge("content_updated_timestamp_seconds", "When the stored content document was last saved"),
		contentItems:    f.gaugeVec("content_items", "Entries per content collection in the stored document", "collection"),
		uploadPresigns:  f.counterVec("upload_presign_total", "Presigned upload requests by result", "result"),
	}
}

func (d *domainMetrics) IncLoginAttempt(result string) {
	d.loginAttempts.WithLabelValues(result).Inc()
}

func (d *domainMetrics) IncTokenRejection(reason string) {
	d.tokenRejections.WithLabelValues(reason).Inc()
}

func (d *domainMetrics) IncContentSave(result string) {
	d.contentSaves.WithLabelValues(result).Inc()
}

func (d *domainMetrics) IncUploadPresign(result string) {
	d.uploadPresigns.WithLabelValues(result).Inc()
}

// ObserveContent records the stamp and collection sizes of a stored
// document. Snapshots without a stamp are ignored.
func (d *domainMetrics) ObserveContent(snap content.Snapshot) {
	t, ok := snap.Updated()
	if !ok {
		return
	}
	d.SetContentUpdated(t)
	sum := content.Summarize(snap.Document)
	for name, n := range map[string]int{
		"listings":  sum.Listings,
		"spotlight": sum.Spotlight,
		"blogs":     sum.Blogs,
	} {
		d.contentItems.WithLabelValues(name).Set(float64(n))
	}
}

func (d *domainMetrics) SetContentUpdated(t time.Time) {
	d.contentUpdated.Set(float64(t.UnixMilli()) / 1e3)
}
