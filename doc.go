// Package hotmock é uma camada de mocks HTTP com recarga a quente.
//
// Visão Geral:
// Arquivos de definição (YAML, JSON ou TOML) declaram rotas no formato
// "METODO /caminho/:param". Cada rota responde com um valor estático ou com um
// handler montado a partir de um kind registrado. Quando um arquivo muda, só as
// rotas que ele contribuiu são substituídas; o restante da tabela fica intacto.
//
// Sub-Pacotes Principais:
//
// 1. routing:
//   - Compilação de padrões (:param, :param*, *) e casamento com a requisição.
//   - Tabela de rotas com índice de origem (arquivo -> chaves) e reconciliação atômica.
//
// 2. reload:
//   - Watcher sobre fsnotify com filtros doublestar.
//   - Coordinator que serializa eventos add/change/unlink e recargas completas.
//
// 3. dispatch:
//   - Middleware que resolve a rota, interpreta o corpo e entrega ao handler,
//     ou devolve a requisição para a cadeia (passthrough).
//
// 4. handlers:
//   - Kinds embutidos: emulator, expression, proxy, schema e source.
//
// 5. schemamock:
//   - Cliente do serviço de documentação que gera respostas a partir de JSON Schema.
//
// Exemplo de Início Rápido:
//
//	package main
//
//	import (
//		"net/http"
//
//		"github.com/raywall/hotmock/pkg/dispatch"
//		"github.com/raywall/hotmock/pkg/routing"
//	)
//
//	func main() {
//		table := routing.NewTable()
//		_, _, _ = table.Reconcile("users.yaml", routing.Mapping{
//			{Key: "GET /users/:id", Entry: routing.Static(map[string]string{"name": "Ana"})},
//		})
//
//		d := dispatch.New(table)
//		app := http.NotFoundHandler()
//		_ = http.ListenAndServe(":8080", d.Middleware(app))
//	}
package hotmock
