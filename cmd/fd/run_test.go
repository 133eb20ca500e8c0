package main

import "testing"

func TestPidFileName(t *testing.T) {
	if got, want := pidFileName("/var/afd"), "/var/afd/fd.pid"; got != want {
		t.Errorf("pidFileName() = %q, want %q", got, want)
	}
}

func TestLogFileName(t *testing.T) {
	if got, want := logFileName("/var/afd"), "/var/afd/log/fd.log"; got != want {
		t.Errorf("logFileName() = %q, want %q", got, want)
	}
}

func TestResolvedConfigPathDefault(t *testing.T) {
	old := configFlag
	defer func() { configFlag = old }()
	configFlag = ""
	workDirFlag = "/var/afd"
	if got, want := resolvedConfigPath(), "/var/afd/etc/AFD_CONFIG"; got != want {
		t.Errorf("resolvedConfigPath() = %q, want %q", got, want)
	}
}

func TestResolvedConfigPathOverride(t *testing.T) {
	old := configFlag
	defer func() { configFlag = old }()
	configFlag = "/etc/fd/custom.ini"
	if got, want := resolvedConfigPath(), "/etc/fd/custom.ini"; got != want {
		t.Errorf("resolvedConfigPath() = %q, want %q", got, want)
	}
}
