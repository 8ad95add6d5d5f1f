package guard

import (
	"errors"
	"net/url"
	"strings"
	"unicode"
)

// ErrInvalidPath — путь нельзя использовать как Pending Redirect.
var ErrInvalidPath = errors.New("invalid redirect path")

// ValidPath сообщает, что path — путь внутри приложения: начинается с
// одного "/", не содержит схемы, хоста и управляющих символов.
// Пути вида "//host" и "/\host" браузер трактует как внешние адреса.
func ValidPath(path string) bool {
	if len(path) == 0 || path[0] != '/' {
		return false
	}

	if len(path) > 1 && (path[1] == '/' || path[1] == '\\') {
		return false
	}

	if strings.IndexFunc(path, unicode.IsControl) >= 0 {
		return false
	}

	u, err := url.Parse(path)
	if err != nil {
		return false
	}

	return u.Scheme == "" && u.Host == "" && u.User == nil
}
