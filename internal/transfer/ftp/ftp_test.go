package ftp

import "testing"

func TestOptionsAddrDefaultsPort(t *testing.T) {
	o := Options{Host: "ftp.example.com"}
	if got, want := o.addr(), "ftp.example.com:21"; got != want {
		t.Errorf("addr() = %q, want %q", got, want)
	}
}

func TestOptionsAddrExplicitPort(t *testing.T) {
	o := Options{Host: "ftp.example.com", Port: "2121"}
	if got, want := o.addr(), "ftp.example.com:2121"; got != want {
		t.Errorf("addr() = %q, want %q", got, want)
	}
}

func TestOptionsTLSConfigNilWhenDisabled(t *testing.T) {
	o := Options{Host: "ftp.example.com"}
	if got := o.tlsConfig(); got != nil {
		t.Errorf("tlsConfig() = %v, want nil", got)
	}
}

func TestOptionsTLSConfigSet(t *testing.T) {
	o := Options{Host: "ftp.example.com", TLS: true, SkipVerifyTLSCert: true}
	got := o.tlsConfig()
	if got == nil {
		t.Fatal("tlsConfig() = nil, want non-nil")
	}
	if got.ServerName != "ftp.example.com" {
		t.Errorf("ServerName = %q, want ftp.example.com", got.ServerName)
	}
	if !got.InsecureSkipVerify {
		t.Error("InsecureSkipVerify = false, want true")
	}
}
