package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordWishAndPaymentCounters(t *testing.T) {
	before := testutil.ToFloat64(wishesSubmitted.WithLabelValues("APEX"))
	RecordWish("APEX")
	assert.Equal(t, before+1, testutil.ToFloat64(wishesSubmitted.WithLabelValues("APEX")))

	grantedBefore := testutil.ToFloat64(creditsGranted)
	RecordCreditsGranted(20)
	RecordCreditsGranted(-5)
	assert.Equal(t, grantedBefore+20, testutil.ToFloat64(creditsGranted))

	evBefore := testutil.ToFloat64(paymentEvents.WithLabelValues("unknown", "ignored"))
	RecordPaymentEvent("", "ignored")
	assert.Equal(t, evBefore+1, testutil.ToFloat64(paymentEvents.WithLabelValues("unknown", "ignored")))
}

func TestInstrumentHandlerUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(InstrumentHandler)
	router.HandleFunc("/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)

	counter := httpRequests.WithLabelValues("GET", "/user/{id}", "404")
	before := testutil.ToFloat64(counter)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/user/u-123", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordWishRejected("insufficient_credits")

	resp := httptest.NewRecorder()
	Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, strings.Contains(resp.Body.String(), "wishbank_wishes_rejections_total"))
}

func TestCanonicalPath(t *testing.T) {
	assert.Equal(t, "/", canonicalPath("/"))
	assert.Equal(t, "/wish", canonicalPath("/wish"))
	assert.Equal(t, "/user/{id}", canonicalPath("/user/abc"))
	assert.Equal(t, "/user", canonicalPath("/user"))
}
