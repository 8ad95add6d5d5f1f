package guard

import "net/http"

// Middleware пропускает запрос к защищённым обработчикам только в состоянии Granted.
// lookup достаёт guard контекста из запроса; denied отвечает вместо защищённого
// обработчика (блокирующая форма входа).
func Middleware(lookup func(r *http.Request) (*Guard, bool), denied http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g, ok := lookup(r)
			if !ok || g.Check(r.Context()) != Granted {
				denied(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
