// Package loadshed fornece os adapters HTTP (net/http + chi) da API de
// empréstimos com escrita adaptativa à carga.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (medidor de saturação, cache read-through,
//     fila de escrita diferida, admissão, drenagem) sem net/http
//   - infra: implementações concretas (Redis, Postgres, memória, token bucket,
//     semáforo, Prometheus)
//   - loadshed (este pacote): middlewares HTTP, handlers JSON e o router
//
// Fluxo de um empréstimo:
//
//  1. Extrai a chave do solicitante (header/XFF/RemoteAddr) e aplica o throttle
//  2. Lê o sinal de saturação compartilhado
//  3. Saturado: enfileira e responde 202 QUEUED
//  4. Normal: valida e grava na fonte de verdade, responde 200 SUCCESS (ou 409)
//
// As leituras de inventário (GET /api/loans/available) são a classe quente de
// endpoint: cada uma incrementa o contador de saturação, e sob saturação são
// servidas do snapshot compartilhado (X-Data-Source: cache).
package loadshed
