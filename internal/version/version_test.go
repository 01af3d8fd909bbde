package version

import (
	"strings"
	"testing"
)

func TestUserAgentCarriesVersion(t *testing.T) {
	if got := UserAgent(); got != "eplforecast/"+Version {
		t.Fatalf("unexpected user agent %q", got)
	}
	if !strings.Contains(String(), "commit: "+Commit) {
		t.Fatalf("build info missing commit: %q", String())
	}
}
