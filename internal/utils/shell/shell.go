package shell

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/open-edge-platform/flatpak-composer/internal/utils/logger"
)

// getShell returns the preferred shell, falling back to /bin/sh if bash is not available
func getShell() string {
	shells := []string{"/bin/bash", "/usr/bin/bash", "/bin/sh"}
	for _, shell := range shells {
		if _, err := os.Stat(shell); err == nil {
			return shell
		}
	}
	return "/bin/sh"
}

// Quote single-quotes s for safe use as one shell word.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
			strings.ContainsRune("-_./=:,+@%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Join quotes every argument and joins them with spaces.
func Join(args ...string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = Quote(a)
	}
	return strings.Join(quoted, " ")
}

// IsCommandExist checks if a command exists on the host
func IsCommandExist(cmd string) bool {
	output, _ := exec.Command(getShell(), "-c", "command -v "+Quote(cmd)).Output()
	return len(bytes.TrimSpace(output)) != 0
}

// GetFullCmdStr prefixes cmdStr with the given KEY=value environment assignments.
func GetFullCmdStr(cmdStr string, envVal []string) string {
	log := logger.Logger()
	if len(envVal) == 0 {
		log.Debugf("exec: [%s]", cmdStr)
		return cmdStr
	}
	envValStr := strings.Join(envVal, " ")
	log.Debugf("exec: [%s %s]", envValStr, cmdStr)
	return envValStr + " " + cmdStr
}

// ExecCmd executes a command and returns its combined output. It is a
// variable so tests can substitute a fake.
var ExecCmd = func(cmdStr string, envVal []string) (string, error) {
	log := logger.Logger()
	fullCmdStr := GetFullCmdStr(cmdStr, envVal)

	cmd := exec.Command(getShell(), "-c", fullCmdStr)
	output, err := cmd.CombinedOutput()
	outputStr := string(output)

	if err != nil {
		if outputStr != "" {
			log.Infof("%s", outputStr)
		}
		return outputStr, fmt.Errorf("failed to exec %s: %w", fullCmdStr, err)
	}
	if outputStr != "" {
		log.Debugf("%s", outputStr)
	}
	return outputStr, nil
}

// ExecCmdWithStream executes a command and streams its output to the log
// while it runs.
var ExecCmdWithStream = func(cmdStr string, envVal []string) (string, error) {
	var (
		outputStr strings.Builder
		mu        sync.Mutex
	)
	log := logger.Logger()
	fullCmdStr := GetFullCmdStr(cmdStr, envVal)

	cmd := exec.Command(getShell(), "-c", fullCmdStr)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stdout pipe for command %s: %w", fullCmdStr, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stderr pipe for command %s: %w", fullCmdStr, err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start command %s: %w", fullCmdStr, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			str := scanner.Text()
			if str != "" {
				mu.Lock()
				outputStr.WriteString(str)
				outputStr.WriteByte('\n')
				mu.Unlock()
				log.Infof("%s", str)
			}
		}
	}()

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if str := scanner.Text(); str != "" {
				log.Infof("%s", str)
			}
		}
	}()

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return outputStr.String(), fmt.Errorf("failed to wait for command %s: %w", fullCmdStr, err)
	}
	return outputStr.String(), nil
}
