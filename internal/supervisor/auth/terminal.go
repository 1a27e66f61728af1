package auth

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// terminalCommand builds a command that runs bin with args inside a new,
// user-visible terminal session and blocks until that session closes.
func terminalCommand(bin string, args []string) (string, []string, error) {
	switch runtime.GOOS {
	case "darwin":
		// Terminal.app's "do script" hands the command off and returns;
		// the caller's confirmation poll bounds the wait. open -W would
		// block on the whole app, not the session.
		script := fmt.Sprintf(`tell application "Terminal"
	activate
	do script %q
end tell`, shellCommandLine(bin, args))
		return "osascript", []string{"-e", script}, nil

	case "windows":
		cmdArgs := append([]string{"/c", "start", "/wait", bin}, args...)
		return "cmd", cmdArgs, nil

	default:
		return linuxTerminalCommand(bin, args)
	}
}

// linuxTerminalCommand picks the first available terminal emulator from a
// candidate list, preferring ones that block until the session closes.
func linuxTerminalCommand(bin string, args []string) (string, []string, error) {
	line := shellCommandLine(bin, args)

	candidates := []struct {
		term string
		args []string
	}{
		{"x-terminal-emulator", []string{"-e", "sh", "-c", line}},
		{"gnome-terminal", []string{"--wait", "--", "sh", "-c", line}},
		{"konsole", []string{"-e", "sh", "-c", line}},
		{"xterm", []string{"-e", "sh", "-c", line}},
	}

	for _, c := range candidates {
		if path, err := exec.LookPath(c.term); err == nil {
			return path, c.args, nil
		}
	}

	return "", nil, fmt.Errorf("no terminal emulator found (tried x-terminal-emulator, gnome-terminal, konsole, xterm)")
}

// shellCommandLine builds a single-quoted shell command line.
func shellCommandLine(bin string, args []string) string {
	quoted := make([]string, 0, len(args)+1)
	quoted = append(quoted, shellQuote(bin))
	for _, arg := range args {
		quoted = append(quoted, shellQuote(arg))
	}
	return strings.Join(quoted, " ")
}

func shellQuote(arg string) string {
	if arg == "" {
		return "''"
	}

	var builder strings.Builder
	builder.Grow(len(arg) + 2)
	builder.WriteByte('\'')
	for i := 0; i < len(arg); i++ {
		if arg[i] == '\'' {
			builder.WriteString(`'\''`)
		} else {
			builder.WriteByte(arg[i])
		}
	}
	builder.WriteByte('\'')
	return builder.String()
}
