// Package domain define os contratos e tipos de valor do caminho de escrita
// adaptativo de empréstimos: portas de contador, snapshot e fila no store
// compartilhado, a fonte da verdade de empréstimos, veredictos de admissão e as
// variantes de devolução de equipamentos.
//
// Não depende de net/http nem de um store concreto.
package domain
