package fault

import (
	"errors"
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

func TestParseErrno(t *testing.T) {
	tests := []struct {
		in   string
		want unix.Errno
		ok   bool
	}{
		{"2", unix.ENOENT, true},
		{" 13 ", unix.EACCES, true},
		{"ENOENT", unix.ENOENT, true},
		{"eio", unix.EIO, true},
		{"4095", unix.Errno(4095), true},
		{"0", 0, false},
		{"-2", 0, false},
		{"4096", 0, false},
		{"", 0, false},
		{"ENOTANERRNO", 0, false},
		{"2x", 0, false},
	}
	for _, tc := range tests {
		got, ok := ParseErrno(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseErrno(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestInject(t *testing.T) {
	err := Inject(unix.ENOENT)
	if !errors.Is(err, unix.ENOENT) {
		t.Errorf("errors.Is(%v, ENOENT) = false", err)
	}
	if !os.IsNotExist(err) {
		t.Errorf("os.IsNotExist(%v) = false", err)
	}
	if got := ReturnRegister(unix.EACCES); got != -13 {
		t.Errorf("ReturnRegister(EACCES) = %d", got)
	}
}

func TestErrnoName(t *testing.T) {
	if got := ErrnoName(unix.ENOENT); got != "ENOENT" {
		t.Errorf("ErrnoName(ENOENT) = %s", got)
	}
	if got := ErrnoName(unix.Errno(4000)); got != "4000" {
		t.Errorf("ErrnoName(4000) = %s", got)
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range Categories() {
		got, err := ParseCategory(c.EnvName())
		if err != nil || got != c {
			t.Errorf("ParseCategory(%s) = %v, %v", c.EnvName(), got, err)
		}
	}
	if _, err := ParseCategory("mmap"); err == nil {
		t.Error("ParseCategory(mmap) should fail")
	}
	if !Open.PathBearing() || !Stat.PathBearing() || Read.PathBearing() {
		t.Error("unexpected PathBearing")
	}
	if Category(100).Valid() || Category(100).Symbol() != "" {
		t.Error("Category(100) should be invalid")
	}
}
