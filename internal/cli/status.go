package cli

import (
	"encoding/json"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	epidemic "github.com/epidemic-mesh/epidemic"
)

func newPrometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	return reg
}

// newStatusServer exposes the running cluster's membership and metrics
// over a small chi router, JSON endpoints alongside a Prometheus scrape
// target.
func newStatusServer(addr string, cluster *epidemic.Cluster, reg *prometheus.Registry) *http.Server {
	r := chi.NewRouter()

	r.Get("/members", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, cluster.Members())
	})

	r.Get("/self", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]string{"host_key": cluster.HostKey().String()})
	})

	r.Post("/seeds", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Addr string `json:"addr"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		addr, err := netip.ParseAddrPort(body.Addr)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cluster.AddSeedNode(addr)
		w.WriteHeader(http.StatusAccepted)
	})

	r.Post("/leave", func(w http.ResponseWriter, req *http.Request) {
		cluster.LeaveCluster()
		w.WriteHeader(http.StatusAccepted)
	})

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &http.Server{Addr: addr, Handler: r}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
