package message

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/secure/precis"
)

const (
	// MaxLineSize - default limit in bytes of a single protocol line.
	MaxLineSize = 4096

	// SystemPrefix - starts every line originated by the server itself.
	// Peer names can not start with it, so such lines never look like a broadcast.
	SystemPrefix = "***"

	// nameSeparator - separates author and text in broadcast lines.
	nameSeparator = ":"
)

var (
	// ErrEmptyName - name line is blank.
	ErrEmptyName = errors.New("message: empty name")
	// ErrNameSeparator - name contains a character used as author separator.
	ErrNameSeparator = errors.New("message: name must not contain " + nameSeparator)
	// ErrReservedName - name starts with prefix of server lines.
	ErrReservedName = errors.New("message: name must not start with " + SystemPrefix)
)

// NewScanner - builds a scanner splitting r into protocol lines.
// Trailing CR is dropped from every line. Lines longer than maxLine bytes stop the scanner
// with bufio.ErrTooLong. Non-positive maxLine means MaxLineSize.
func NewScanner(r io.Reader, maxLine int) *bufio.Scanner {
	if maxLine <= 0 {
		maxLine = MaxLineSize
	}
	initial := 512
	if maxLine < initial {
		initial = maxLine
	}
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, initial), maxLine)
	s.Split(bufio.ScanLines)
	return s
}

// Text - returns message text of the line as is, only surrounding space is trimmed.
// The trailing CR of a CRLF terminated line is already dropped by the scanner.
func Text(line []byte) string {
	return strings.TrimSpace(string(line))
}

// Clean - makes printable text from raw line bytes, names are built from it.
// Invalid unicode sequences and control characters are dropped, any other space rune becomes plain space,
// surrounding space is trimmed.
func Clean(line []byte) string {
	b := strings.Builder{}
	b.Grow(len(line))
	for len(line) > 0 {
		r, size := utf8.DecodeRune(line)
		line = line[size:]
		switch {
		case r == utf8.RuneError && size <= 1:
			// drop
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case unicode.IsControl(r):
			// drop
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Name - validates peer name and returns its normalized form.
// Names are normalized with PRECIS Nickname profile (RFC 8266),
// so differently encoded but equal names have the same form.
func Name(line string) (string, error) {
	if strings.TrimSpace(line) == "" {
		return "", ErrEmptyName
	}
	name, err := precis.Nickname.String(line)
	if err != nil {
		return "", errors.Wrapf(err, "message: invalid name %q", line)
	}
	if strings.Contains(name, nameSeparator) {
		return "", ErrNameSeparator
	}
	if strings.HasPrefix(name, SystemPrefix) {
		return "", ErrReservedName
	}
	return name, nil
}

// Format - formats chat message of the author for recipients.
func Format(from, text string) string {
	return from + nameSeparator + " " + text + "\n"
}

// Notice - formats line originated by the server.
func Notice(format string, args ...interface{}) string {
	return SystemPrefix + " " + fmt.Sprintf(format, args...) + "\n"
}

// Rejection - formats notice for a peer trying to join with a busy name.
func Rejection(name string) string {
	return Notice("name %q is already taken", name)
}
