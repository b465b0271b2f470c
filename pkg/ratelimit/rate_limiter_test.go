package ratelimit

import "testing"

func TestParseWindowCounts(t *testing.T) {
	// go-redis hands Lua integers back as int64. The old decoder stringified
	// them with a float verb, failed to parse, and silently reported a count
	// of zero, which let every request through.
	count, remaining, err := parseWindowCounts([]interface{}{int64(42), int64(18)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 42 || remaining != 18 {
		t.Fatalf("expected (42, 18), got (%d, %d)", count, remaining)
	}

	cases := []struct {
		name   string
		result interface{}
	}{
		{"not a slice", "nope"},
		{"wrong length", []interface{}{int64(1)}},
		{"count not int64", []interface{}{"42", int64(18)}},
		{"remaining not int64", []interface{}{int64(42), 1.5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := parseWindowCounts(tc.result); err == nil {
				t.Fatal("expected decode error")
			}
		})
	}
}

func TestGetLimitPerType(t *testing.T) {
	r := &RateLimiter{config: &Config{
		DefaultRequests: 60,
		PublicRequests:  100,
		SessionRequests: 30,
		ConfirmRequests: 10,
		HealthRequests:  120,
	}}

	cases := []struct {
		limitType RateLimitType
		want      int
	}{
		{RateLimitTypeDefault, 60},
		{RateLimitTypePublic, 100},
		{RateLimitTypeSession, 30},
		{RateLimitTypeConfirm, 10},
		{RateLimitTypeHealth, 120},
		{RateLimitType("unknown"), 60},
	}
	for _, tc := range cases {
		if got := r.getLimit(tc.limitType); got != tc.want {
			t.Fatalf("limit for %q: expected %d, got %d", tc.limitType, tc.want, got)
		}
	}
}
