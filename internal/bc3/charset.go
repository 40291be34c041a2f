package bc3

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// DefaultInputEncodings are tried in order when decoding BC3 input. Strict
// UTF-8 comes first because ASCII-only and modern exports satisfy it, and a
// Latin-1 file with accented text never does.
var DefaultInputEncodings = []string{"UTF-8", "windows-1252", "ISO-8859-1"}

// DefaultOutputEncoding is the charset generated files are written in.
const DefaultOutputEncoding = "ISO-8859-1"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LookupEncoding resolves an IANA charset name.
func LookupEncoding(name string) (encoding.Encoding, error) {
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("encoding %q is not supported", name)
	}
	return enc, nil
}

// Decode converts raw input to UTF-8 using the first encoding in names that
// decodes it cleanly: valid UTF-8 for the UTF-8 names, and no replacement
// characters for single-byte charsets. The name of the winning encoding is
// returned with the text. No content sniffing is done: order alone decides.
func Decode(data []byte, names []string) (string, string, error) {
	if len(names) == 0 {
		names = DefaultInputEncodings
	}

	var failures []string
	for _, name := range names {
		enc, err := LookupEncoding(name)
		if err != nil {
			failures = append(failures, err.Error())
			continue
		}

		if isUTF8(name) {
			// Validate the bytes, not the output: an encoded U+FFFD is legal text.
			src := bytes.TrimPrefix(data, utf8BOM)
			if !utf8.Valid(src) {
				failures = append(failures, fmt.Sprintf("%s: invalid byte sequence", name))
				continue
			}
			return string(src), name, nil
		}

		decoded, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if bytes.ContainsRune(decoded, utf8.RuneError) {
			failures = append(failures, fmt.Sprintf("%s: invalid byte sequence", name))
			continue
		}
		return string(decoded), name, nil
	}

	return "", "", fmt.Errorf("%w (%s)", ErrUndecodable, strings.Join(failures, "; "))
}

// Encode converts UTF-8 text to the named charset. Characters the charset
// cannot represent are substituted rather than failing the whole document.
func Encode(text, name string) ([]byte, error) {
	if name == "" {
		name = DefaultOutputEncoding
	}
	enc, err := LookupEncoding(name)
	if err != nil {
		return nil, err
	}
	out, err := encoding.ReplaceUnsupported(enc.NewEncoder()).Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to encode output as %s: %w", name, err)
	}
	return out, nil
}

func isUTF8(name string) bool {
	n := strings.ToLower(strings.ReplaceAll(name, "-", ""))
	return n == "utf8"
}
