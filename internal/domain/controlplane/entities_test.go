package controlplane

import "testing"

func ptr(v int64) *int64 { return &v }

func TestSysLogSourcePriorityOrder(t *testing.T) {
	cases := []struct {
		name string
		log  SysLog
		want SysLogSource
	}{
		{"restriction wins over everything", SysLog{RestrictionID: ptr(1), ModelID: ptr(2), UserID: ptr(3)}, SourceRestriction},
		{"model wins over signature/user", SysLog{ModelID: ptr(2), SignatureID: ptr(3), UserID: ptr(4)}, SourceModel},
		{"signature wins over user", SysLog{SignatureID: ptr(3), UserID: ptr(4)}, SourceSignature},
		{"user wins over suspicious user", SysLog{UserID: ptr(4), SuspiciousUserID: ptr(5)}, SourceUser},
		{"suspicious user wins over report", SysLog{SuspiciousUserID: ptr(5), ReportID: ptr(6)}, SourceSuspiciousUser},
		{"report wins over whitelist", SysLog{ReportID: ptr(6), WhitelistID: ptr(7)}, SourceReport},
		{"whitelist alone", SysLog{WhitelistID: ptr(7)}, SourceWhitelist},
		{"nothing set falls back to system", SysLog{}, SourceSystem},
	}
	for _, c := range cases {
		got, _ := c.log.Source()
		if got != c.want {
			t.Errorf("%s: got %s want %s", c.name, got, c.want)
		}
	}
}

func TestValidRole(t *testing.T) {
	if !ValidRole(RoleAdmin) || !ValidRole(RoleUser) || !ValidRole(RoleAnalyst) {
		t.Fatalf("expected defined roles to be valid")
	}
	if ValidRole("superuser") {
		t.Fatalf("expected undefined role to be invalid")
	}
}
