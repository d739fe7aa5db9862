// Package shell builds ssh invocations against the remote host.
package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/semmidev/dbpull/internal/domain"
	"github.com/semmidev/dbpull/internal/infrastructure/procrun"
)

type Client struct {
	binary   string
	endpoint domain.ShellEndpoint
}

func New(binary string, endpoint domain.ShellEndpoint) *Client {
	if binary == "" {
		binary = "ssh"
	}
	return &Client{binary: binary, endpoint: endpoint}
}

func (c *Client) Endpoint() domain.ShellEndpoint {
	return c.endpoint
}

// Args returns the ssh arguments that run script on the remote host. ssh never
// prompts: BatchMode fails fast instead of waiting for input.
func (c *Client) Args(script string) []string {
	args := []string{"-o", "BatchMode=yes"}
	if c.endpoint.KnownHostsFile != "" {
		args = append(args,
			"-o", "StrictHostKeyChecking=yes",
			"-o", "UserKnownHostsFile="+c.endpoint.KnownHostsFile,
		)
	} else {
		args = append(args, "-o", "StrictHostKeyChecking=no")
	}

	return append(args,
		"-p", strconv.Itoa(c.endpoint.Port),
		"-i", c.endpoint.KeyPath,
		c.endpoint.Target(),
		script,
	)
}

// Command runs script remotely. stdin is forwarded to the remote process.
func (c *Client) Command(script string, stdin io.Reader) procrun.Command {
	return procrun.Command{
		Name:  c.binary,
		Args:  c.Args(script),
		Stdin: stdin,
	}
}

// WithSecret prefixes cmd so that the remote shell reads the first line of
// stdin into the environment variable name before exec'ing cmd. The secret
// never appears on a command line.
func WithSecret(name, cmd string) string {
	return fmt.Sprintf("IFS= read -r %[1]s && export %[1]s && exec %[2]s", name, cmd)
}

// SecretInput is the stdin payload matching WithSecret.
func SecretInput(secret string) io.Reader {
	return strings.NewReader(secret + "\n")
}

// Quote single-quotes s for a POSIX shell.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Join quotes every word and joins them with spaces.
func Join(words ...string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = Quote(w)
	}
	return strings.Join(quoted, " ")
}

// CheckKey makes sure path holds a parseable private key. Passphrase
// protected keys are accepted; ssh-agent may hold the decrypted key.
func CheckKey(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read SSH key %s: %w", path, err)
	}

	if _, err := ssh.ParsePrivateKey(data); err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil
		}
		return fmt.Errorf("failed to parse SSH key %s: %w", path, err)
	}

	return nil
}

func CheckKnownHosts(path string) error {
	if _, err := knownhosts.New(path); err != nil {
		return fmt.Errorf("failed to parse known_hosts %s: %w", path, err)
	}
	return nil
}
