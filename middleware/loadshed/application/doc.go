// Package application contém os casos de uso do caminho de escrita adaptativo.
//
// Depende só de domain (e do logger) e não sabe nada sobre net/http:
//
//   - SaturationMeter: contador compartilhado de requisições, falha aberto
//   - ReadThroughCache: snapshot do inventário, usado conforme o sinal de saturação
//   - WriteQueue: pedidos adiados, FIFO, pop atômico
//   - Admission: saturado => fila, normal => commit síncrono
//   - Drainer / DrainWorker: reaplica um pedido por tick enquanto a carga está baixa
//   - ReturnService: devolução despachada por categoria
//   - RequesterThrottle / SlotGate: token bucket por solicitante e limite em voo
package application
