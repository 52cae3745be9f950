package domain

import "testing"

func TestTargetBaseURL(t *testing.T) {
	port := 8443
	t1 := &Target{Host: "example.com", Protocol: ProtocolHTTPS, Port: &port}
	if got, want := t1.BaseURL(), "https://example.com:8443"; got != want {
		t.Fatalf("BaseURL() = %q, want %q", got, want)
	}

	t2 := &Target{Host: "example.com", Protocol: ProtocolHTTP}
	if got, want := t2.BaseURL(), "http://example.com"; got != want {
		t.Fatalf("BaseURL() = %q, want %q", got, want)
	}
}

func TestProtocolDefaultPort(t *testing.T) {
	if ProtocolHTTPS.DefaultPort() != 443 {
		t.Fatalf("https default port should be 443")
	}
	if ProtocolHTTP.DefaultPort() != 80 {
		t.Fatalf("http default port should be 80")
	}
}

func TestMissionCanTransition(t *testing.T) {
	cases := []struct {
		from MissionStatus
		to   MissionStatus
		want bool
	}{
		{MissionActive, MissionPaused, true},
		{MissionPaused, MissionActive, true},
		{MissionActive, MissionCompleted, true},
		{MissionActive, MissionFailed, true},
		{MissionPaused, MissionFailed, true},
		{MissionCompleted, MissionActive, false},
		{MissionFailed, MissionPaused, false},
		{MissionPaused, MissionPaused, false},
	}
	for _, c := range cases {
		m := &Mission{Status: c.from}
		if got := m.CanTransition(c.to); got != c.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}
