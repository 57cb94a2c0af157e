package tools

import "unicode"

type printableType interface {
	~string | ~[]rune | ~[]byte
}

// IsPrintable strips non-printable runes, so remote file names and
// transfer payloads cannot smuggle control sequences into log output.
func IsPrintable[T printableType](v T) string {
	var result []rune

	switch v := any(v).(type) {
	case string:
		for _, r := range v {
			if unicode.IsPrint(r) {
				result = append(result, r)
			}
		}
	case []rune:
		for _, r := range v {
			if unicode.IsPrint(r) {
				result = append(result, r)
			}
		}
	case []byte:
		for _, r := range string(v) {
			if unicode.IsPrint(r) {
				result = append(result, r)
			}
		}
	}
	return string(result)
}
