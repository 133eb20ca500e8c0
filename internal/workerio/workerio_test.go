package workerio

import "testing"

func TestParseArgsPositional(t *testing.T) {
	a, err := ParseArgs([]string{"/work", "3", "host01", "7", "2a/0/3e8_7_0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.WorkDir != "/work" || a.JobSubindex != 3 || a.FSAID != "host01" || a.FSAPos != 7 || a.Target != "2a/0/3e8_7_0" {
		t.Fatalf("unexpected parse result: %+v", a)
	}
}

func TestParseArgsFlags(t *testing.T) {
	a, err := ParseArgs([]string{"/work", "0", "host01", "1", "dir1", "-A", "-r", "-t", "-a", "3600", "-f", "fd@x", "-s", "smtp.x", "-o", "2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.NoArchive || !a.Resend || !a.TempToggle {
		t.Fatalf("expected all boolean flags set: %+v", a)
	}
	if a.AgeLimit != 3600 || a.SMTPFrom != "fd@x" || a.SMTPServer != "smtp.x" || a.RetryCount != 2 {
		t.Fatalf("unexpected flag values: %+v", a)
	}
}

func TestParseArgsTooFewPositional(t *testing.T) {
	if _, err := ParseArgs([]string{"/work", "0"}); err == nil {
		t.Fatal("expected error for too few positional args")
	}
}

func TestParseArgsUnknownFlag(t *testing.T) {
	if _, err := ParseArgs([]string{"/work", "0", "host01", "1", "dir1", "-Z"}); err == nil {
		t.Fatal("expected error for unrecognized flag")
	}
}
