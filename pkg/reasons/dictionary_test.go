package reasons

import (
	"strings"
	"testing"
)

func TestExplainKnownCode(t *testing.T) {
	e := Explain(CodeR1Unverified, nil)
	if e.Code != CodeR1Unverified {
		t.Fatalf("expected code %s, got %s", CodeR1Unverified, e.Code)
	}
	if e.Severity != SeverityError {
		t.Errorf("expected ERROR severity, got %s", e.Severity)
	}
	if e.DeveloperExplanation == "" || e.BusinessImpact == "" || e.RecommendedAction == "" {
		t.Error("dictionary entry has empty explanation fields")
	}
}

func TestExplainUnknownCodeNeverFails(t *testing.T) {
	e := Explain("NOT_A_REAL_CODE", nil)
	if e.Severity != SeverityError {
		t.Errorf("fallback severity should be ERROR, got %s", e.Severity)
	}
	if e.Audience != AudienceDev {
		t.Errorf("fallback audience should be dev, got %s", e.Audience)
	}
	if !strings.Contains(e.DeveloperExplanation, "NOT_A_REAL_CODE") {
		t.Errorf("fallback should name the unknown code: %s", e.DeveloperExplanation)
	}
}

func TestExplainSubstitutesContextVars(t *testing.T) {
	e := Explain(CodeR2Degraded, map[string]string{"percent": "30.00%"})
	if !strings.Contains(e.DeveloperExplanation, "30.00%") {
		t.Errorf("expected percent substitution, got %s", e.DeveloperExplanation)
	}

	e = Explain(CodeR3DensityThreshold, map[string]string{"count": "4", "threshold": "3"})
	if !strings.Contains(e.DeveloperExplanation, "4") || !strings.Contains(e.DeveloperExplanation, "3") {
		t.Errorf("expected count/threshold substitution, got %s", e.DeveloperExplanation)
	}
}

func TestEveryCodeHasCompleteEntry(t *testing.T) {
	for _, code := range ListAllCodes() {
		e := Explain(code, nil)
		if e.DeveloperExplanation == "" || e.BusinessImpact == "" || e.RecommendedAction == "" {
			t.Errorf("code %s has incomplete entry", code)
		}
		switch e.Severity {
		case SeverityInfo, SeverityWarn, SeverityError:
		default:
			t.Errorf("code %s has invalid severity %q", code, e.Severity)
		}
		switch e.Audience {
		case AudienceDev, AudienceBiz:
		default:
			t.Errorf("code %s has invalid audience %q", code, e.Audience)
		}
	}
}

func TestListAllCodesSorted(t *testing.T) {
	codes := ListAllCodes()
	if len(codes) == 0 {
		t.Fatal("no codes registered")
	}
	for i := 1; i < len(codes); i++ {
		if codes[i-1] >= codes[i] {
			t.Fatalf("codes not sorted: %s before %s", codes[i-1], codes[i])
		}
	}
}
