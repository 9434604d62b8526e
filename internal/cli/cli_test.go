package cli

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zqzqsb/faultinj/fault"
)

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestErrnoCmd(t *testing.T) {
	code, out, _ := run(t, "errno", "ENOENT", "13")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "NAME")
	assert.Regexp(t, `ENOENT\s+2\s+no such file or directory`, out)
	assert.Regexp(t, `EACCES\s+13\s+permission denied`, out)

	code, _, errOut := run(t, "errno", "EBOGUS")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, `unknown errno "EBOGUS"`)

	code, _, _ = run(t, "errno")
	assert.Equal(t, 1, code)
}

func TestRulesCmdFlags(t *testing.T) {
	code, out, errOut := run(t, "rules",
		"--error-path", "./thisfile.txt",
		"--errno", "open=ENOENT,read=5",
		"--delay-path", "./slow",
		"--delay", "write=40,lseek=0",
		"--likelihood", "50",
	)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, `error path: "./thisfile.txt"`)
	assert.Contains(t, out, `delay path: "./slow"`)
	assert.Contains(t, out, "likelihood: 50%")
	assert.Regexp(t, `open\s+\[open openat creat\]\s+ENOENT\(2\)`, out)
	assert.Regexp(t, `read\s+\[.*\]\s+EIO\(5\)`, out)
	assert.Regexp(t, `write\s+\[.*\]\s+-\s+40ms`, out)
	// 设置了延迟路径后，没有指定时长的类别使用默认的 200ms，0 表示不延迟
	assert.Regexp(t, `close\s+\[close\]\s+-\s+200ms`, out)
	assert.Regexp(t, `lseek\s+\[lseek\]\s+-\s+-`, out)
}

func TestRulesCmdInvalid(t *testing.T) {
	tests := [][]string{
		{"rules", "--errno", "mmap=1"},
		{"rules", "--errno", "open=bogus"},
		{"rules", "--delay", "read=-1"},
		{"rules", "--likelihood", "120"},
		{"rules", "--log-format", "xml"},
		{"rules", "--rules", "/nonexistent/rules.yaml"},
	}
	for _, args := range tests {
		code, _, errOut := run(t, args...)
		assert.Equal(t, 1, code, strings.Join(args, " "))
		assert.Contains(t, errOut, "Error:", strings.Join(args, " "))
	}
}

func TestRulesPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("error_path: ./from-file\nerrno:\n  open: EACCES\n  stat: ENOENT\n"), 0644))

	t.Setenv(fault.EnvErrorPath, "./from-env")
	t.Setenv(fault.ErrnoKey(fault.Write), "ENOSPC")

	code, out, errOut := run(t, "rules", "--rules", path, "--errno", "open=EIO")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, `error path: "./from-file"`)
	assert.Regexp(t, `open\s+\[.*\]\s+EIO\(5\)`, out)
	assert.Regexp(t, `stat\s+\[.*\]\s+ENOENT\(2\)`, out)
	assert.Regexp(t, `write\s+\[.*\]\s+ENOSPC\(28\)`, out)

	code, out, _ = run(t, "rules", "--rules", path, "--error-path", "./from-flag")
	require.Equal(t, 0, code)
	assert.Contains(t, out, `error path: "./from-flag"`)
}

func TestExitError(t *testing.T) {
	var err error = &ExitError{Code: 3}
	assert.EqualError(t, err, "program exited with code 3")
}

func TestExecuteExitFunc(t *testing.T) {
	orig := exitFunc
	defer func() { exitFunc = orig }()
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	var got int
	exitFunc = func(code int) { got = code }

	os.Args = []string{"faultinj", "errno", "ENOENT"}
	Execute()
	assert.Equal(t, 0, got)

	os.Args = []string{"faultinj", "errno", "EBOGUS"}
	Execute()
	assert.Equal(t, 1, got)
}

func TestRunCmd(t *testing.T) {
	if runtime.GOARCH != "amd64" {
		t.Skip("register access is only implemented on amd64")
	}
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not found")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "thisfile.txt"), []byte("content"), 0600))

	code, out, errOut := run(t, "run", "--workdir", dir, "--", "cat", "./thisfile.txt")
	if code == 1 && strings.Contains(errOut, "Error:") {
		t.Skipf("ptrace unavailable: %s", errOut)
	}
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "content", out)
	assert.Contains(t, errOut, "injected=0")

	code, out, errOut = run(t, "run", "--workdir", dir,
		"--error-path", "./thisfile.txt", "--errno", "open=ENOENT",
		"--", "cat", "./thisfile.txt")
	assert.Equal(t, 1, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "No such file or directory")
	assert.Contains(t, errOut, "fault injected")
	assert.Contains(t, errOut, "injected=1")
}

func TestRunCmdMissingProgram(t *testing.T) {
	code, _, errOut := run(t, "run", "--", "/nonexistent/prog")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "find program")
}
