package protocol

import "testing"

func TestStringKnownVariants(t *testing.T) {
	cases := map[Variant]string{
		FTP: "ftp", SFTP: "sftp", HTTP: "http", Local: "local", Unknown: "unknown",
	}
	for v, want := range cases {
		if got := v.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", int(v), got, want)
		}
	}
}

func TestPushPullProgram(t *testing.T) {
	if got, want := FTP.PushProgram(), "sf_ftp"; got != want {
		t.Errorf("FTP.PushProgram() = %q, want %q", got, want)
	}
	if got, want := FTP.PullProgram(), "gf_ftp"; got != want {
		t.Errorf("FTP.PullProgram() = %q, want %q", got, want)
	}
	if got := SMTP.PullProgram(); got != "" {
		t.Errorf("SMTP.PullProgram() = %q, want empty (push-only)", got)
	}
}

func TestDefaultPort(t *testing.T) {
	if got, want := SFTP.DefaultPort(), 22; got != want {
		t.Errorf("SFTP.DefaultPort() = %d, want %d", got, want)
	}
}

func TestParse(t *testing.T) {
	v, err := Parse("ftp")
	if err != nil || v != FTP {
		t.Fatalf("Parse(%q) = %v, %v, want FTP, nil", "ftp", v, err)
	}
	if _, err := Parse("bogus"); err == nil {
		t.Error("Parse(bogus) returned nil error, want non-nil")
	}
}
