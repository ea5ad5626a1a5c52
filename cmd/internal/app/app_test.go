package app

import "testing"

func TestRuntimeBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "explicit localhost", in: "127.0.0.1:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v4", in: "0.0.0.0:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v6", in: "[::]:9090", want: "http://127.0.0.1:9090"},
		{name: "ipv6 host", in: "[2001:db8::1]:9090", want: "http://[2001:db8::1]:9090"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := runtimeBaseURL(tc.in)
			if got != tc.want {
				t.Fatalf("runtimeBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
			}
		})
	}
}

func TestWSBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "http://127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
		{in: "https://plume.example.com", want: "wss://plume.example.com"},
		{in: "127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
	}

	for _, tc := range cases {
		got := wsBaseURL(tc.in)
		if got != tc.want {
			t.Fatalf("wsBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestValidateSecurityConfig(t *testing.T) {
	t.Setenv("PLUME_AUTH_ACCESS_SECRET", "")
	t.Setenv("PLUME_AUTH_REFRESH_SECRET", "")
	t.Setenv("PLUME_WS_DEV_INSECURE", "")

	if err := ValidateSecurityConfig(Config{Env: "development"}); err != nil {
		t.Fatalf("development must not require secrets: %v", err)
	}

	if err := ValidateSecurityConfig(Config{Env: "production"}); err == nil {
		t.Fatalf("production without secrets must fail")
	}

	t.Setenv("PLUME_AUTH_ACCESS_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("PLUME_AUTH_REFRESH_SECRET", "fedcba9876543210fedcba9876543210")

	if err := ValidateSecurityConfig(Config{Env: "production"}); err != nil {
		t.Fatalf("production with secrets must pass: %v", err)
	}

	t.Setenv("PLUME_WS_DEV_INSECURE", "true")
	if err := ValidateSecurityConfig(Config{Env: "production"}); err == nil {
		t.Fatalf("production with dev-insecure websockets must fail")
	}
}

func TestMetricsRoute(t *testing.T) {
	t.Parallel()

	if got := metricsRoute("/auth/login"); got != "/auth/login" {
		t.Fatalf("known route collapsed: %q", got)
	}
	if got := metricsRoute("/auth/login/../../etc/passwd"); got != "other" {
		t.Fatalf("unknown route not collapsed: %q", got)
	}
}
