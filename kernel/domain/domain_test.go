package domain

import "testing"

func TestOwnerRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		owner   Owner
		wantID  ID
		wantOK  bool
		wantStr string
	}{
		{"domain zero", Of(Privileged), 0, true, "domain(0)"},
		{"domain seven", Of(ID(7)), 7, true, "domain(7)"},
		{"free", OwnerFree, 0, false, "free"},
		{"hypervisor", OwnerHypervisor, 0, false, "hypervisor"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := tc.owner.Domain()
			if ok != tc.wantOK || (ok && id != tc.wantID) {
				t.Fatalf("Domain() = (%d, %v); want (%d, %v)", id, ok, tc.wantID, tc.wantOK)
			}
			if got := tc.owner.String(); got != tc.wantStr {
				t.Errorf("String() = %q; want %q", got, tc.wantStr)
			}
		})
	}
}

func TestIsDomain(t *testing.T) {
	if !Of(Privileged).IsDomain() {
		t.Error("expected domain 0 to be a domain owner")
	}
	if OwnerFree.IsDomain() || OwnerHypervisor.IsDomain() {
		t.Error("expected the reserved sentinels not to be domain owners")
	}
}
