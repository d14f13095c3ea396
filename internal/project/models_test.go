package project

import (
	"errors"
	"strings"
	"testing"
)

func TestCreateProjectInputValidate(t *testing.T) {
	cases := []struct {
		name    string
		in      CreateProjectInput
		wantErr bool
	}{
		{"valid", CreateProjectInput{TeamID: "t1", Name: "tracker"}, false},
		{"trims name", CreateProjectInput{TeamID: "t1", Name: "  tracker  "}, false},
		{"missing team", CreateProjectInput{Name: "tracker"}, true},
		{"missing name", CreateProjectInput{TeamID: "t1"}, true},
		{"whitespace name", CreateProjectInput{TeamID: "t1", Name: "   "}, true},
		{"name too long", CreateProjectInput{TeamID: "t1", Name: strings.Repeat("x", 201)}, true},
		{"description too long", CreateProjectInput{TeamID: "t1", Name: "ok", Description: strings.Repeat("x", 4001)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("err = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if strings.TrimSpace(tc.in.Name) != tc.in.Name {
				t.Errorf("name not trimmed: %q", tc.in.Name)
			}
		})
	}
}

func TestCreateBugInputValidate(t *testing.T) {
	cases := []struct {
		name         string
		in           CreateBugInput
		wantErr      bool
		wantSeverity string
	}{
		{"valid explicit severity", CreateBugInput{ProjectID: "p1", Title: "crash", Severity: SeverityHigh}, false, SeverityHigh},
		{"severity defaults to medium", CreateBugInput{ProjectID: "p1", Title: "crash"}, false, SeverityMedium},
		{"missing project", CreateBugInput{Title: "crash"}, true, ""},
		{"missing title", CreateBugInput{ProjectID: "p1"}, true, ""},
		{"title too long", CreateBugInput{ProjectID: "p1", Title: strings.Repeat("x", 201)}, true, ""},
		{"unknown severity", CreateBugInput{ProjectID: "p1", Title: "crash", Severity: "urgent"}, true, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("err = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.in.Severity != tc.wantSeverity {
				t.Errorf("severity = %q, want %q", tc.in.Severity, tc.wantSeverity)
			}
		})
	}
}

func TestUpdateBugInputValidate(t *testing.T) {
	str := func(s string) *string { return &s }

	cases := []struct {
		name    string
		in      UpdateBugInput
		wantErr bool
	}{
		{"empty update", UpdateBugInput{}, false},
		{"valid status", UpdateBugInput{Status: str(BugClosed)}, false},
		{"valid severity", UpdateBugInput{Severity: str(SeverityCritical)}, false},
		{"empty title", UpdateBugInput{Title: str("  ")}, true},
		{"unknown status", UpdateBugInput{Status: str("resolved")}, true},
		{"unknown severity", UpdateBugInput{Severity: str("blocker")}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.wantErr != (err != nil) {
				t.Errorf("err = %v, wantErr = %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidBugStatus(t *testing.T) {
	for _, s := range []string{BugOpen, BugInProgress, BugResolved, BugClosed} {
		if !ValidBugStatus(s) {
			t.Errorf("ValidBugStatus(%q) = false", s)
		}
	}
	for _, s := range []string{"", "OPEN", "done"} {
		if ValidBugStatus(s) {
			t.Errorf("ValidBugStatus(%q) = true", s)
		}
	}
}
