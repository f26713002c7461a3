package main

import (
	"embed"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/michalsegal11/your-digital-companion/libs/config"
)

//go:embed assets/gateway.v1.yaml
var openAPISpec embed.FS

type upstreams struct {
	Booking      *url.URL
	Business     *url.URL
	Notification *url.URL
	Analytics    *url.URL
}

func upstreamsFromEnv() upstreams {
	return upstreams{
		Booking:      mustParseURL(config.String("BOOKING_URL", "http://booking-service:8083")),
		Business:     mustParseURL(config.String("BUSINESS_URL", "http://business-service:8082")),
		Notification: mustParseURL(config.String("NOTIFICATION_URL", "http://notification-service:8085")),
		Analytics:    mustParseURL(config.String("ANALYTICS_URL", "http://analytics-service:8086")),
	}
}

func registerRoutes(mux *http.ServeMux, up upstreams, transport http.RoundTripper) {
	bookingProxy := newProxy(up.Booking, transport)
	businessProxy := newProxy(up.Business, transport)
	notificationProxy := newProxy(up.Notification, transport)
	analyticsProxy := newProxy(up.Analytics, transport)

	registerProxy(mux, "/api/v1/public", bookingProxy)
	registerProxy(mux, "/api/v1/appointments", bookingProxy)
	registerProxy(mux, "/api/v1/salon", businessProxy)
	registerProxy(mux, "/api/v1/notifications", notificationProxy)
	registerProxy(mux, "/api/v1/analytics", analyticsProxy)

	mux.HandleFunc("/openapi", func(w http.ResponseWriter, _ *http.Request) {
		data, err := openAPISpec.ReadFile("assets/gateway.v1.yaml")
		if err != nil {
			http.Error(w, "openapi not available", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})
}

func newProxy(target *url.URL, transport http.RoundTripper) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)
	if transport != nil {
		proxy.Transport = transport
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, _ error) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}
	return proxy
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	if !strings.HasSuffix(prefix, "/") {
		mux.Handle(prefix, handler)
		mux.Handle(prefix+"/", handler)
		return
	}
	mux.Handle(prefix, handler)
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}
