package wire

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Ident is the ASCII identification banner each SSH peer sends first:
// "SSH-<proto>-<software>[ <comment>]\r\n". proto is fixed at "2.0" for
// this implementation. Neither '-' nor a space nor CR/LF may appear
// inside proto or software.
type Ident struct {
	Proto    string
	Software string
	Comment  string
}

var (
	// ErrBadBanner is returned when the peer's identification line does
	// not begin with "SSH-" or is otherwise malformed.
	ErrBadBanner = errors.New("wire: malformed identification banner")
)

// Encode serializes the banner exactly as it goes on the wire, including
// the trailing CRLF.
func (id Ident) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString("SSH-")
	buf.WriteString(id.Proto)
	buf.WriteByte('-')
	buf.WriteString(id.Software)
	if id.Comment != "" {
		buf.WriteByte(' ')
		buf.WriteString(id.Comment)
	}
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// Validate rejects protocol/software fields that would make the banner
// ambiguous to parse back.
func (id Ident) Validate() error {
	if containsAny(id.Proto, "- \r\n") {
		return fmt.Errorf("%w: proto contains reserved character", ErrBadBanner)
	}
	if containsAny(id.Software, "- \r\n") {
		return fmt.Errorf("%w: software contains reserved character", ErrBadBanner)
	}
	if containsAny(id.Comment, "\r\n") {
		return fmt.Errorf("%w: comment contains CR/LF", ErrBadBanner)
	}
	return nil
}

func containsAny(s, chars string) bool {
	for _, c := range chars {
		for _, r := range s {
			if r == c {
				return true
			}
		}
	}
	return false
}

// ReadIdent reads the identification line from r, discarding any
// preceding lines that don't start with "SSH-" (RFC 4253 §4.2 permits a
// peer to send informational lines before its banner). A line ended by LF
// must have CR before the LF; only a final line that runs to the end of
// the stream may lack its terminator.
func ReadIdent(r *bufio.Reader) (Ident, error) {
	_, id, err := ReadIdentLine(r)
	return id, err
}

// ReadIdentLine is ReadIdent but also returns the banner line exactly as
// received, with CR/LF stripped, for use as V_S in the exchange-hash
// input (spec §4.4).
func ReadIdentLine(r *bufio.Reader) (raw []byte, id Ident, err error) {
	for {
		line, err := readLineCRLF(r)
		if err != nil {
			return nil, Ident{}, err
		}
		if len(line) >= 4 && string(line[:4]) == "SSH-" {
			id, err := parseIdentLine(line)
			return line, id, err
		}
	}
}

// readLineCRLF reads bytes up to and including a terminating CRLF, or up
// to EOF for a non-empty final line (with or without a trailing CR). An LF
// not preceded by CR is rejected. The returned bytes exclude the
// terminator(s).
func readLineCRLF(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				return trimCR(line), nil
			}
			return nil, err
		}
		if b == '\n' {
			if len(line) == 0 || line[len(line)-1] != '\r' {
				return nil, fmt.Errorf("%w: line ended by LF without CR", ErrBadBanner)
			}
			return trimCR(line), nil
		}
		line = append(line, b)
	}
}

func trimCR(line []byte) []byte {
	if len(line) > 0 && line[len(line)-1] == '\r' {
		return line[:len(line)-1]
	}
	return line
}

// parseIdentLine implements the grammar from spec §4.1: read "SSH", then
// '-', then the protocol version until the next '-', then either the
// software version up to a space (followed by a comment) or directly to
// end of line.
func parseIdentLine(line []byte) (Ident, error) {
	const prefix = "SSH-"
	if len(line) < len(prefix) || string(line[:len(prefix)]) != prefix {
		return Ident{}, fmt.Errorf("%w: missing SSH- prefix", ErrBadBanner)
	}
	rest := line[len(prefix):]

	dash := bytes.IndexByte(rest, '-')
	if dash < 0 {
		return Ident{}, fmt.Errorf("%w: missing protocol version separator", ErrBadBanner)
	}
	proto := string(rest[:dash])
	rest = rest[dash+1:]

	var software, comment string
	if sp := bytes.IndexByte(rest, ' '); sp >= 0 {
		software = string(rest[:sp])
		comment = string(rest[sp+1:])
	} else {
		software = string(rest)
	}

	id := Ident{Proto: proto, Software: software, Comment: comment}
	return id, nil
}
