package discovery

import "testing"

func TestDefaultGRPCAddr(t *testing.T) {
	cases := map[string]string{
		ServiceReview:  "review:8082",
		ServiceSweeper: "sweeper:8083",
		ServicePadsync: "padsync:8084",
	}
	for service, want := range cases {
		if got := DefaultGRPCAddr(service); got != want {
			t.Fatalf("DefaultGRPCAddr(%q) = %q, want %q", service, got, want)
		}
	}
	if got := DefaultGRPCAddr(ServicePad); got != "" {
		t.Fatalf("expected no grpc default for pad, got %q", got)
	}
}

func TestDefaultHTTPAddr(t *testing.T) {
	cases := map[string]string{
		ServiceReview: "review:8080",
		ServiceMCP:    "mcp:8085",
		ServicePad:    "pad:8090",
		ServiceJaeger: "jaeger:16686",
	}
	for service, want := range cases {
		if got := DefaultHTTPAddr(service); got != want {
			t.Fatalf("DefaultHTTPAddr(%q) = %q, want %q", service, got, want)
		}
	}
}

func TestOrDefaultGRPCAddr(t *testing.T) {
	if got := OrDefaultGRPCAddr(" custom:9000 ", ServiceReview); got != "custom:9000" {
		t.Fatalf("expected explicit grpc addr to win, got %q", got)
	}
	if got := OrDefaultGRPCAddr("", ServiceReview); got != "review:8082" {
		t.Fatalf("expected default grpc addr, got %q", got)
	}
}

func TestOrDefaultHTTPBaseURL(t *testing.T) {
	if got := OrDefaultHTTPBaseURL(" https://pad.example.com ", ServicePad); got != "https://pad.example.com" {
		t.Fatalf("expected explicit base url to win, got %q", got)
	}
	if got := OrDefaultHTTPBaseURL("", ServicePad); got != "http://pad:8090" {
		t.Fatalf("expected default pad base url, got %q", got)
	}
}
