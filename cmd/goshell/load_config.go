package main

// load_config.go - Host configuration loading and parsing.

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cyberpanther232/goshell/client"
	"github.com/cyberpanther232/goshell/transport"
)

// HostConfig is one named Host block from goshell.conf. Ciphers and
// KexAlgorithms are optional comma-separated overrides of this client's
// default algorithm preference order (client.DefaultProposal); a block
// that omits them uses the default order for those slots.
type HostConfig struct {
	Host                   string
	Port                   int
	User                   string
	KeybasedAuthentication bool
	IdentityFile           string
	Hostname               string
	Ciphers                []string
	KexAlgorithms          []string
}

// Proposal builds the transport.Proposal this host should negotiate
// with, starting from client.DefaultProposal and substituting this
// block's Ciphers/KexAlgorithms overrides (applied to both directions'
// encryption slots) when present.
func (h HostConfig) Proposal() *transport.Proposal {
	p := client.DefaultProposal()
	if len(h.Ciphers) > 0 {
		p.EncCS = h.Ciphers
		p.EncSC = h.Ciphers
	}
	if len(h.KexAlgorithms) > 0 {
		p.Kex = h.KexAlgorithms
	}
	return &p
}

func loadConfig(configurationPath string) (map[string]HostConfig, error) {
	if _, err := os.Stat(configurationPath); os.IsNotExist(err) {
		return map[string]HostConfig{}, nil
	}

	f, err := os.Open(configurationPath)
	if err != nil {
		return nil, fmt.Errorf("load_config: %w", err)
	}
	defer f.Close()

	cfgs := map[string]HostConfig{}
	var current HostConfig

	commitCurrent := func() {
		if strings.TrimSpace(current.Host) != "" {
			cfgs[current.Host] = current
		}
		current = HostConfig{}
	}

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			commitCurrent()
			continue
		}

		sp := strings.IndexFunc(line, func(r rune) bool { return r == ' ' || r == '\t' })
		var key, val string
		if sp == -1 {
			key = line
			val = ""
		} else {
			key = strings.TrimSpace(line[:sp])
			val = strings.TrimSpace(line[sp+1:])
		}

		switch key {
		case "Host":
			if strings.TrimSpace(current.Host) != "" {
				commitCurrent()
			}
			current.Host = val
		case "Port":
			p, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("load_config: line %d: invalid Port %q: %w", lineNo, val, err)
			}
			current.Port = p
		case "User":
			current.User = val
		case "KeybasedAuthentication":
			current.KeybasedAuthentication = parseYesNo(val)
		case "IdentityFile":
			current.IdentityFile = val
		case "Hostname":
			current.Hostname = val
		case "Ciphers":
			current.Ciphers = splitCommaList(val)
		case "KexAlgorithms":
			current.KexAlgorithms = splitCommaList(val)
		default:
			return nil, fmt.Errorf("load_config: line %d: unrecognized key %q", lineNo, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("load_config: %w", err)
	}

	commitCurrent()
	return cfgs, nil
}

func splitCommaList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseYesNo(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1", "y":
		return true
	default:
		return false
	}
}
