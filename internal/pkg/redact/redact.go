// redact маскирует чувствительные данные перед записью в логи:
// e-mail, токены, пароли и подписи в подписанных ссылках.
package redact

import (
	"net/url"
	"strings"
)

// Email маскирует e-mail для логирования.
//
// Правила:
//   - строка должна содержать ровно один '@', иначе "***";
//   - от локальной части остаются первые две руны + "***";
//   - локальная часть из ≤ 2 рун целиком заменяется на "***";
//   - домен не меняется.
func Email(s string) string {
	if strings.Count(s, "@") != 1 {
		return "***"
	}

	local, domain, _ := strings.Cut(s, "@")

	lr := []rune(local)
	if len(lr) > 2 {
		local = string(lr[:2]) + "***"
	} else {
		local = "***"
	}

	return local + "@" + domain
}

// Token маскирует токен; для длинных токенов оставляет последние 4 символа,
// чтобы записи одного токена можно было сопоставить в логах.
func Token(tok string) string {
	if len(tok) < 16 {
		return "[REDACTED_TOKEN]"
	}

	return "[REDACTED_TOKEN:" + tok[len(tok)-4:] + "]"
}

// Password возвращает литерал-заглушку для пароля в логах.
func Password() string { return "[REDACTED_PASSWORD]" }

// SignedURL убирает query (подпись, креды) из подписанной ссылки.
// Нераспарсиваемая строка заменяется целиком.
func SignedURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "[REDACTED_URL]"
	}

	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}
