package main

import (
	f "fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/cyberpanther232/goshell/client"
	"github.com/cyberpanther232/goshell/internal/keys"
)

// Logger is the subset of client.Logger this package's own debug.log /
// verbose-stdout mechanism satisfies; declared here so session.go doesn't
// need to import the client package just to accept one.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
}

func main() {
	args := os.Args[1:]

	parsedArgs, err := parseArgs(args)
	if err != nil {
		panic(err)
	}

	if parsedArgs.ConfigPath == "" {
		parsedArgs.ConfigPath = "goshell.conf"
	}

	configuration, err := loadConfig(parsedArgs.ConfigPath)
	if err != nil {
		panic(err)
	}

	if len(configuration) == 0 {
		f.Println("No configuration found. Please create a goshell.conf file.")
		return
	}

	var selected HostConfig
	var ok bool

	if parsedArgs.Host == "" {
		f.Println("Available Hosts:")
		for host := range configuration {
			f.Println(" -", host)
		}
		choice := strings.TrimSpace(getUserInput("Select a host: "))
		selected, ok = configuration[choice]
	} else {
		selected, ok = configuration[strings.TrimSpace(parsedArgs.Host)]
	}

	if !ok {
		f.Println("Host not found in configuration.")
		return
	}

	if selected.Port == 0 {
		selected.Port = 22
	}

	addr := net.JoinHostPort(selected.Hostname, strconv.Itoa(selected.Port))
	f.Println("Connecting to", addr, "...")
	conn, err := net.DialTimeout("tcp", addr, 15*time.Second)
	if err != nil {
		f.Println("Connection failed:", err)
		os.Exit(1)
	}
	defer conn.Close()

	log := cliLogger{}

	cfg := client.Config{
		Username:        selected.User,
		Logger:          log,
		DebugVerbosity:  parsedArgs.VerboseLevel,
		Proposal:        selected.Proposal(),
		HostKeyVerifier: interactiveHostKeyVerifier{hostLabel: addr},
	}

	if selected.KeybasedAuthentication && selected.IdentityFile != "" {
		identity, err := keys.Load(selected.IdentityFile)
		if err != nil {
			f.Print("Enter key passphrase (leave blank to skip): ")
			passBytes, _ := term.ReadPassword(int(os.Stdin.Fd()))
			f.Println()
			if len(passBytes) > 0 {
				identity, err = keys.LoadWithPassphrase(selected.IdentityFile, passBytes)
			}
		}
		if err != nil {
			f.Printf("Could not load identity file %s: %v\n", selected.IdentityFile, err)
		} else {
			cfg.Identities = []client.Signer{identity}
		}
	}

	cfg.Password = func() ([]byte, error) {
		f.Printf("Password authentication for %s@%s\n", selected.User, selected.Hostname)
		f.Print("Enter password: ")
		pwdBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		f.Println()
		return pwdBytes, err
	}

	engine, err := client.Connect(conn, cfg)
	if err != nil {
		if _, exhausted := err.(client.AuthExhaustedError); exhausted {
			f.Println("Authentication failed: no candidate method succeeded.")
		} else {
			f.Println("Connection failed:", err)
		}
		os.Exit(1)
	}

	f.Println("SSH connection established and authenticated.")

	if parsedArgs.Test {
		f.Println("Test mode: authentication successful, exiting before session start.")
		logDebug("exiting after successful authentication in test mode")
		return
	}

	if err := runShellSession(engine, log, parsedArgs.Cmd); err != nil {
		f.Println("Session ended:", err)
		os.Exit(1)
	}
}
