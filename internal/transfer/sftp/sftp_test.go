package sftp

import (
	"path/filepath"
	"testing"
)

func TestOptionsAddrDefaultsPort(t *testing.T) {
	o := Options{Host: "sftp.example.com"}
	if got, want := o.addr(), "sftp.example.com:22"; got != want {
		t.Errorf("addr() = %q, want %q", got, want)
	}
}

func TestAuthMethodsPasswordOnly(t *testing.T) {
	o := Options{Pass: "s3cret"}
	methods, err := o.authMethods()
	if err != nil {
		t.Fatalf("authMethods() error = %v", err)
	}
	if len(methods) != 1 {
		t.Errorf("authMethods() returned %d methods, want 1", len(methods))
	}
}

func TestAuthMethodsNoneConfigured(t *testing.T) {
	methods, err := (Options{}).authMethods()
	if err != nil {
		t.Fatalf("authMethods() error = %v", err)
	}
	if len(methods) != 0 {
		t.Errorf("authMethods() returned %d methods, want 0", len(methods))
	}
}

func TestAuthMethodsMissingKeyFile(t *testing.T) {
	o := Options{KeyFile: filepath.Join(t.TempDir(), "does-not-exist")}
	if _, err := o.authMethods(); err == nil {
		t.Error("authMethods() with a missing key file returned nil error")
	}
}
