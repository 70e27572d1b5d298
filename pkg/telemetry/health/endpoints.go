package health

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// VersionInfo is served on /version.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Mount serves liveness on /health, readiness on /ready and build
// information on /version.
func (c *Checker) Mount(mux *http.ServeMux, info VersionInfo) {
	mux.Handle("/health", c.LivenessHandler())
	mux.Handle("/ready", c.ReadinessHandler())
	mux.Handle("/version", VersionHandler(info.Version, info.Commit, info.BuildTime))
}

// LivenessHandler answers 200 for as long as the process can serve HTTP.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return probe(func(r *http.Request) (int, any) {
		return http.StatusOK, c.CheckLiveness(r.Context())
	})
}

// ReadinessHandler runs every check and answers 503 while any fails:
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "seat:p1": {"status": "ok", "duration_ms": 12},
//	        "seat:p2": {"status": "unhealthy", "message": "connection refused", "duration_ms": 3}
//	    },
//	    "timestamp": "2026-05-02T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return probe(func(r *http.Request) (int, any) {
		status := c.CheckReadiness(r.Context())
		if !status.Ready() {
			return http.StatusServiceUnavailable, status
		}
		return http.StatusOK, status
	})
}

func VersionHandler(version, commit, buildTime string) http.HandlerFunc {
	info := VersionInfo{Version: version, Commit: commit, BuildTime: buildTime, GoVersion: runtime.Version()}
	return probe(func(*http.Request) (int, any) { return http.StatusOK, info })
}

// probe wraps a GET/HEAD-only JSON endpoint. HEAD gets the status code
// without a body.
func probe(fn func(r *http.Request) (int, any)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		code, body := fn(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode(body)
		}
	}
}
