package main

import (
	bufio "bufio"
	"crypto/sha256"
	"encoding/base64"
	f "fmt"
	"os"
	"strings"
)

func getUserInput(prompt string) string {
	f.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// interactiveHostKeyVerifier is a client.HostKeyVerifier that asks the
// user to confirm the server's host key fingerprint the first time it is
// seen, the way ssh(1) does on an unknown host — this client keeps no
// known_hosts file, so every connection prompts. hostLabel is included
// in the prompt purely for the user's benefit.
type interactiveHostKeyVerifier struct {
	hostLabel string
}

// Verify prints the SHA256 fingerprint of hostKeyBlob (OpenSSH's own
// format: base64 of the raw SHA-256 digest, unpadded) and rejects the
// connection unless the user answers yes.
func (v interactiveHostKeyVerifier) Verify(hostKeyBlob []byte) error {
	sum := sha256.Sum256(hostKeyBlob)
	fingerprint := "SHA256:" + base64.RawStdEncoding.EncodeToString(sum[:])

	f.Printf("The authenticity of host '%s' can't be established.\n", v.hostLabel)
	f.Printf("Host key fingerprint is %s\n", fingerprint)
	answer := strings.ToLower(getUserInput("Are you sure you want to continue connecting (yes/no)? "))
	if answer != "yes" && answer != "y" {
		return f.Errorf("host key for %s rejected by user", v.hostLabel)
	}
	return nil
}
